package db

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogo/protobuf/proto"
	"github.com/google/orderedcode"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/lightnode/light/store"
	tmproto "github.com/tendermint/lightnode/proto/lightnode/types"
	"github.com/tendermint/lightnode/types"
)

const (
	prefixLightBlock = int64(11)
	prefixSize       = int64(12)
)

type dbs struct {
	db     dbm.DB
	prefix string

	size int
}

var _ store.Backend = (*dbs)(nil)

// New returns a store.Backend that wraps any DB (with an optional prefix in
// case you want to use one DB with many light clients).
//
// Light blocks are marshalled using protobuf.
func New(db dbm.DB, prefix string) (store.Backend, error) {
	s := &dbs{db: db, prefix: prefix}

	bz, err := db.Get(s.sizeKey())
	if err != nil {
		return nil, errors.Wrap(err, "reading size")
	}
	if len(bz) > 0 {
		s.size = unmarshalSize(bz)
	}

	return s, nil
}

// Set persists the light blocks to the db in a single synced batch.
func (s *dbs) Set(lbs ...*types.LightBlock) error {
	b := s.db.NewBatch()
	defer b.Close()

	size := s.size
	seen := make(map[uint64]struct{}, len(lbs))
	for _, lb := range lbs {
		lbpb, err := lb.ToProto()
		if err != nil {
			return errors.Wrap(err, "unable to convert light block to protobuf")
		}

		lbBz, err := proto.Marshal(lbpb)
		if err != nil {
			return errors.Wrap(err, "marshaling LightBlock")
		}

		key := s.lbKey(lb.Height)
		if _, ok := seen[lb.Height]; !ok {
			exists, err := s.db.Has(key)
			if err != nil {
				return err
			}
			if !exists {
				size++
			}
			seen[lb.Height] = struct{}{}
		}

		if err = b.Set(key, lbBz); err != nil {
			return err
		}
	}

	if err := b.Set(s.sizeKey(), marshalSize(size)); err != nil {
		return err
	}
	if err := b.WriteSync(); err != nil {
		return err
	}

	s.size = size
	return nil
}

// Get loads the LightBlock at the given height.
func (s *dbs) Get(height uint64) (*types.LightBlock, error) {
	bz, err := s.db.Get(s.lbKey(height))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, store.ErrLightBlockNotFound
	}

	return decodeLightBlock(bz)
}

// Last returns the light block with the greatest stored height.
func (s *dbs) Last() (*types.LightBlock, error) {
	itr, err := s.db.ReverseIterator(
		s.lbKey(1),
		append(s.lbKey(math.MaxUint64), byte(0x00)),
	)
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	if itr.Valid() {
		return s.decodeEntry(itr.Key(), itr.Value())
	}

	return nil, store.ErrLightBlockNotFound
}

// Before iterates over light blocks until it finds a block before the given
// height. It returns ErrLightBlockNotFound if no such block exists.
func (s *dbs) Before(height uint64) (*types.LightBlock, error) {
	if height <= 1 {
		return nil, store.ErrLightBlockNotFound
	}

	itr, err := s.db.ReverseIterator(
		s.lbKey(1),
		s.lbKey(height),
	)
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	if itr.Valid() {
		return s.decodeEntry(itr.Key(), itr.Value())
	}

	return nil, store.ErrLightBlockNotFound
}

// Ascend walks the stored light blocks from the lowest height up.
func (s *dbs) Ascend(fn func(lb *types.LightBlock) bool) error {
	itr, err := s.db.Iterator(
		s.lbKey(1),
		append(s.lbKey(math.MaxUint64), byte(0x00)),
	)
	if err != nil {
		return err
	}
	defer itr.Close()

	for ; itr.Valid(); itr.Next() {
		lb, err := s.decodeEntry(itr.Key(), itr.Value())
		if err != nil {
			return err
		}
		if !fn(lb) {
			break
		}
	}

	return itr.Error()
}

// Size returns the number of stored light blocks.
func (s *dbs) Size() int {
	return s.size
}

func (s *dbs) sizeKey() []byte {
	key, err := orderedcode.Append(nil, s.prefix, prefixSize)
	if err != nil {
		panic(err)
	}
	return key
}

func (s *dbs) lbKey(height uint64) []byte {
	key, err := orderedcode.Append(nil, s.prefix, prefixLightBlock, height)
	if err != nil {
		panic(err)
	}
	return key
}

func parseLbKey(key []byte) (prefix string, height uint64, err error) {
	var index int64
	remaining, err := orderedcode.Parse(string(key), &prefix, &index, &height)
	if err != nil {
		return "", 0, err
	}
	if remaining != "" {
		return "", 0, fmt.Errorf("expected no remainder when parsing key but got: %s", remaining)
	}
	if index != prefixLightBlock {
		return "", 0, fmt.Errorf("expected light block prefix but got: %d", index)
	}
	return prefix, height, nil
}

// decodeEntry decodes an iterated light block, checking it is stored under
// its own height.
func (s *dbs) decodeEntry(key, value []byte) (*types.LightBlock, error) {
	prefix, height, err := parseLbKey(key)
	if err != nil {
		return nil, err
	}
	if prefix != s.prefix {
		return nil, fmt.Errorf("expected prefix %q, got %q", s.prefix, prefix)
	}
	lb, err := decodeLightBlock(value)
	if err != nil {
		return nil, err
	}
	if lb.Height != height {
		return nil, fmt.Errorf("light block at height %d stored under height %d", lb.Height, height)
	}
	return lb, nil
}

func decodeLightBlock(bz []byte) (*types.LightBlock, error) {
	var lbpb tmproto.LightBlock
	if err := proto.Unmarshal(bz, &lbpb); err != nil {
		return nil, errors.Wrap(err, "unmarshal error")
	}

	lb, err := types.LightBlockFromProto(&lbpb)
	if err != nil {
		return nil, errors.Wrap(err, "proto conversion error")
	}

	return lb, nil
}

func marshalSize(size int) []byte {
	bs := make([]byte, 8)
	binary.LittleEndian.PutUint64(bs, uint64(size))
	return bs
}

func unmarshalSize(bz []byte) int {
	return int(binary.LittleEndian.Uint64(bz))
}
