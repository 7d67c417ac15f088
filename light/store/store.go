package store

import (
	"errors"
	"sync"

	"github.com/tendermint/lightnode/types"
)

// Backend is an ordered height -> light block map. Backends need not be safe
// for concurrent use; Store serializes access to them.
type Backend interface {
	// Get returns the light block at height, or ErrLightBlockNotFound.
	Get(height uint64) (*types.LightBlock, error)

	// Set inserts all of the light blocks in one atomic write. A light block
	// at an existing height replaces the old one.
	Set(lbs ...*types.LightBlock) error

	// Last returns the light block with the greatest height, or
	// ErrLightBlockNotFound if the backend is empty.
	Last() (*types.LightBlock, error)

	// Before returns the light block with the greatest height strictly below
	// height, or ErrLightBlockNotFound.
	Before(height uint64) (*types.LightBlock, error)

	// Ascend calls fn for every light block in ascending height order until
	// fn returns false.
	Ascend(fn func(lb *types.LightBlock) bool) error

	// Size returns the number of stored light blocks.
	Size() int
}

// Store is a thread-safe ordered collection of light blocks indexed by
// height. Access goes through the handles returned by Split: any number of
// Readers and exactly one ReadWriter.
//
// Light blocks are shared, not copied: callers must not mutate a light block
// after saving it or after reading it back.
type Store struct {
	mtx     sync.RWMutex
	backend Backend

	splitOnce sync.Once
}

// New returns a Store over the given backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// NewMemStore returns a Store kept in memory.
func NewMemStore() *Store {
	return New(NewMemBackend())
}

// Split returns the read-only and the read-write handles of the store.
//
// Split may be called only once, so that there is a single writer; a second
// call panics. Readers are values and can be copied freely.
func (s *Store) Split() (Reader, *ReadWriter) {
	first := false
	s.splitOnce.Do(func() { first = true })
	if !first {
		panic("store: Split called more than once")
	}
	r := Reader{s: s}
	return r, &ReadWriter{Reader: r}
}

// Reader is a read-only handle to a Store.
type Reader struct {
	s *Store
}

// LightBlock returns the light block at the given height.
//
// If the light block is not found, ErrLightBlockNotFound is returned.
func (r Reader) LightBlock(height uint64) (*types.LightBlock, error) {
	if height == 0 {
		return nil, ErrZeroHeight
	}

	r.s.mtx.RLock()
	defer r.s.mtx.RUnlock()
	return r.s.backend.Get(height)
}

// LatestHeight returns the greatest stored height. ok is false if the store
// is empty.
func (r Reader) LatestHeight() (height uint64, ok bool, err error) {
	lb, err := r.Latest()
	switch {
	case errors.Is(err, ErrLightBlockNotFound):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return lb.Height, true, nil
}

// Latest returns the light block with the greatest height, or
// ErrLightBlockNotFound if the store is empty.
func (r Reader) Latest() (*types.LightBlock, error) {
	r.s.mtx.RLock()
	defer r.s.mtx.RUnlock()
	return r.s.backend.Last()
}

// LightBlockBefore returns the light block with the greatest height strictly
// below height. It returns ErrLightBlockNotFound if no such light block exists.
func (r Reader) LightBlockBefore(height uint64) (*types.LightBlock, error) {
	if height == 0 {
		return nil, ErrZeroHeight
	}

	r.s.mtx.RLock()
	defer r.s.mtx.RUnlock()
	return r.s.backend.Before(height)
}

// All returns every stored light block in ascending height order.
func (r Reader) All() ([]*types.LightBlock, error) {
	r.s.mtx.RLock()
	defer r.s.mtx.RUnlock()

	lbs := make([]*types.LightBlock, 0, r.s.backend.Size())
	err := r.s.backend.Ascend(func(lb *types.LightBlock) bool {
		lbs = append(lbs, lb)
		return true
	})
	if err != nil {
		return nil, err
	}
	return lbs, nil
}

// Size returns the number of stored light blocks.
func (r Reader) Size() int {
	r.s.mtx.RLock()
	defer r.s.mtx.RUnlock()
	return r.s.backend.Size()
}

// ReadWriter is the single writing handle to a Store. It can read too.
type ReadWriter struct {
	Reader
}

// SaveLightBlock saves a light block at lb.Height. Saving a light block at an
// existing height replaces it.
func (rw *ReadWriter) SaveLightBlock(lb *types.LightBlock) error {
	return rw.SaveLightBlocks(lb)
}

// SaveLightBlocks saves the light blocks in one write: readers observe
// either none or all of them.
func (rw *ReadWriter) SaveLightBlocks(lbs ...*types.LightBlock) error {
	for _, lb := range lbs {
		if lb == nil || lb.SignedHeader == nil || lb.Header == nil {
			return ErrNilLightBlock
		}
		if lb.Height == 0 {
			return ErrZeroHeight
		}
	}
	if len(lbs) == 0 {
		return nil
	}

	rw.s.mtx.Lock()
	defer rw.s.mtx.Unlock()
	return rw.s.backend.Set(lbs...)
}
