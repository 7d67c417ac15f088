package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/lightnode/crypto"
	"github.com/tendermint/lightnode/crypto/ed25519"
	"github.com/tendermint/lightnode/types"
)

// PrivKeys is a helper type for testing.
//
// It lets us simulate signing with many keys.  The main use case is to create
// a set, and call GenSignedHeader to get properly signed header for testing.
//
// You can set different weights of validators each time you call ToValidators,
// and can optionally extend the validator set later with Extend.
type PrivKeys []crypto.PrivKey

// GenPrivKeys produces an array of private keys to generate commits.
func GenPrivKeys(n int) PrivKeys {
	res := make(PrivKeys, n)
	for i := range res {
		res[i] = ed25519.GenPrivKey()
	}
	return res
}

// Extend adds n more keys (to remove, just take a slice).
func (pkz PrivKeys) Extend(n int) PrivKeys {
	extra := GenPrivKeys(n)
	return append(pkz, extra...)
}

// ChangeKeys drops the first delta keys and appends delta fresh ones.
func (pkz PrivKeys) ChangeKeys(delta int) PrivKeys {
	newKeys := pkz[delta:]
	return newKeys.Extend(delta)
}

// ToValidators produces a valset from the set of keys.
// The first key has weight `init` and it increases by `inc` every step
// so we can have all the same weight, or a simple linear distribution
// (should be enough for testing).
func (pkz PrivKeys) ToValidators(init, inc int64) *types.ValidatorSet {
	res := make([]*types.Validator, len(pkz))
	for i, k := range pkz {
		res[i] = types.NewValidator(k.PubKey(), init+int64(i)*inc)
	}
	return types.NewValidatorSet(res)
}

// SignHeader properly signs the header with all keys from first to last exclusive.
// Keys that are not members of valSet are skipped.
func (pkz PrivKeys) SignHeader(t testing.TB, header *types.Header, valSet *types.ValidatorSet, first, last int) *types.Commit {
	t.Helper()

	commitSigs := make([]types.CommitSig, valSet.Size())
	for i := range commitSigs {
		commitSigs[i] = types.NewCommitSigAbsent()
	}

	blockID := types.BlockID{
		Hash:          header.Hash(),
		PartSetHeader: types.PartSetHeader{Total: 1, Hash: crypto.CRandBytes(32)},
	}

	// Fill in the votes we want.
	for i := first; i < last && i < len(pkz); i++ {
		addr := pkz[i].PubKey().Address()
		idx, _ := valSet.GetByAddress(addr)
		if idx < 0 {
			continue
		}
		signBytes := types.VoteSignBytes(header.ChainID, header.Height, 1, blockID, header.Time)
		sig, err := pkz[i].Sign(signBytes)
		require.NoError(t, err)

		commitSigs[idx] = types.CommitSig{
			BlockIDFlag:      types.BlockIDFlagCommit,
			ValidatorAddress: addr,
			Timestamp:        header.Time,
			Signature:        sig,
		}
	}

	return types.NewCommit(header.Height, 1, blockID, commitSigs)
}

// MakeHeader returns a header for the given validator sets. The remaining
// hashes are fixed.
func MakeHeader(chainID string, height uint64, bTime time.Time,
	valset, nextValset *types.ValidatorSet, lastBlockID types.BlockID) *types.Header {

	return &types.Header{
		Version:            types.BlockProtocol,
		ChainID:            chainID,
		Height:             height,
		Time:               bTime,
		LastBlockID:        lastBlockID,
		ValidatorsHash:     valset.Hash(),
		NextValidatorsHash: nextValset.Hash(),
		AppHash:            Hash("app_hash"),
		ConsensusHash:      Hash("cons_hash"),
		LastResultsHash:    Hash("results_hash"),
		ProposerAddress:    valset.Validators[0].Address,
	}
}

// GenSignedHeader calls MakeHeader and SignHeader and combines them into a SignedHeader.
func (pkz PrivKeys) GenSignedHeader(t testing.TB, chainID string, height uint64, bTime time.Time,
	valset, nextValset *types.ValidatorSet, first, last int) *types.SignedHeader {

	t.Helper()

	header := MakeHeader(chainID, height, bTime, valset, nextValset, types.BlockID{})
	return &types.SignedHeader{
		Header: header,
		Commit: pkz.SignHeader(t, header, valset, first, last),
	}
}

// GenLightBlock signs a header with keys first..last and bundles it with its
// validator sets.
func (pkz PrivKeys) GenLightBlock(t testing.TB, chainID string, height uint64, bTime time.Time,
	valset, nextValset *types.ValidatorSet, first, last int) *types.LightBlock {

	t.Helper()

	return &types.LightBlock{
		SignedHeader:     pkz.GenSignedHeader(t, chainID, height, bTime, valset, nextValset, first, last),
		ValidatorSet:     valset,
		NextValidatorSet: nextValset,
	}
}

// Hash returns the checksum of s, for filling header hashes.
func Hash(s string) []byte {
	return crypto.Checksum([]byte(s))
}
