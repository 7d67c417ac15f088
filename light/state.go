package light

import (
	"github.com/tendermint/lightnode/light/store"
)

// State is the light node state owned by a Demuxer.
//
// Trusted holds every light block that has been brought into trust; it is
// only written when a run succeeds. Valid and Fetched record light blocks
// that passed a single validation step and light blocks fetched from the
// provider. They are bounded, for inspection only, and never consulted when
// deciding trust.
type State struct {
	Trusted *store.ReadWriter
	Valid   *store.Cache
	Fetched *store.Cache
}

// NewState returns a State writing trusted light blocks through trusted and
// remembering up to cacheSize valid and fetched light blocks each.
func NewState(trusted *store.ReadWriter, cacheSize int) (*State, error) {
	valid, err := store.NewCache(cacheSize)
	if err != nil {
		return nil, err
	}
	fetched, err := store.NewCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &State{
		Trusted: trusted,
		Valid:   valid,
		Fetched: fetched,
	}, nil
}
