package provider

import (
	"context"

	"github.com/tendermint/lightnode/types"
)

//go:generate mockery --case underscore --name Provider

// Provider provides information for the light client to sync (verification
// happens in the client).
type Provider interface {
	// LightBlock returns the LightBlock that corresponds to the given
	// height.
	//
	// 0 - the latest.
	//
	// If the provider fails to fetch the LightBlock due to the IO or other
	// issues, an error will be returned.
	// If there's no LightBlock for the given height, ErrLightBlockNotFound
	// error is returned.
	LightBlock(ctx context.Context, height uint64) (*types.LightBlock, error)

	// String identifies the provider, e.g. by its remote address.
	String() string
}
