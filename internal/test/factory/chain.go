package factory

import (
	"testing"
	"time"

	"github.com/tendermint/lightnode/types"
)

// DefaultTestChainID is the chain id used by generated chains.
const DefaultTestChainID = "test-chain"

// BlockInterval separates consecutive generated blocks.
const BlockInterval = time.Minute

// Chain is a generated chain of light blocks, indexed by height.
type Chain struct {
	ChainID string
	Blocks  map[uint64]*types.LightBlock
	Keys    map[uint64]PrivKeys
}

// Height returns the height of the last block of the chain.
func (c *Chain) Height() uint64 {
	return uint64(len(c.Blocks))
}

// GenChain generates a chain of numBlocks light blocks starting at height 1.
// Every block is signed by all of its validators (power 10 each). After each
// block, changePerBlock validators are replaced by fresh ones, so a large
// change rate forces a light client to bisect. Block h has time
// bTime + h*BlockInterval.
func GenChain(t testing.TB, chainID string, numBlocks uint64, valSize, changePerBlock int, bTime time.Time) *Chain {
	t.Helper()

	chain := &Chain{
		ChainID: chainID,
		Blocks:  make(map[uint64]*types.LightBlock, numBlocks),
		Keys:    make(map[uint64]PrivKeys, numBlocks+1),
	}

	keys := GenPrivKeys(valSize)
	lastBlockID := types.BlockID{}
	for height := uint64(1); height <= numBlocks; height++ {
		newKeys := keys.ChangeKeys(changePerBlock)
		valset, nextValset := keys.ToValidators(10, 0), newKeys.ToValidators(10, 0)

		header := MakeHeader(chainID, height, bTime.Add(time.Duration(height)*BlockInterval),
			valset, nextValset, lastBlockID)
		commit := keys.SignHeader(t, header, valset, 0, len(keys))

		chain.Blocks[height] = &types.LightBlock{
			SignedHeader:     &types.SignedHeader{Header: header, Commit: commit},
			ValidatorSet:     valset,
			NextValidatorSet: nextValset,
		}
		chain.Keys[height] = keys

		lastBlockID = commit.BlockID
		keys = newKeys
	}

	return chain
}
