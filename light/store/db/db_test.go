package db

import (
	"testing"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/lightnode/internal/test/factory"
	"github.com/tendermint/lightnode/light/store"
	"github.com/tendermint/lightnode/types"
)

var bTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestLightBlockRoundTrip(t *testing.T) {
	chain := factory.GenChain(t, factory.DefaultTestChainID, 3, 4, 1, bTime)

	backend, err := New(dbm.NewMemDB(), "TestLightBlockRoundTrip")
	require.NoError(t, err)

	_, err = backend.Get(1)
	assert.ErrorIs(t, err, store.ErrLightBlockNotFound)
	_, err = backend.Last()
	assert.ErrorIs(t, err, store.ErrLightBlockNotFound)

	require.NoError(t, backend.Set(chain.Blocks[2], chain.Blocks[1]))
	assert.Equal(t, 2, backend.Size())

	lb, err := backend.Get(2)
	require.NoError(t, err)
	assert.Equal(t, chain.Blocks[2].Hash(), lb.Hash())
	require.NoError(t, lb.ValidateBasic(chain.ChainID))

	last, err := backend.Last()
	require.NoError(t, err)
	assert.EqualValues(t, 2, last.Height)

	before, err := backend.Before(2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, before.Height)

	_, err = backend.Before(1)
	assert.ErrorIs(t, err, store.ErrLightBlockNotFound)

	// overwriting does not change the size
	require.NoError(t, backend.Set(chain.Blocks[2], chain.Blocks[3]))
	assert.Equal(t, 3, backend.Size())
}

func TestSizePersists(t *testing.T) {
	chain := factory.GenChain(t, factory.DefaultTestChainID, 2, 3, 0, bTime)
	db := dbm.NewMemDB()

	backend, err := New(db, "p")
	require.NoError(t, err)
	require.NoError(t, backend.Set(chain.Blocks[1], chain.Blocks[2]))

	reopened, err := New(db, "p")
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Size())

	// another prefix in the same db is independent
	other, err := New(db, "q")
	require.NoError(t, err)
	assert.Zero(t, other.Size())
	_, err = other.Last()
	assert.ErrorIs(t, err, store.ErrLightBlockNotFound)
}

func TestStoreOverDB(t *testing.T) {
	chain := factory.GenChain(t, factory.DefaultTestChainID, 4, 3, 1, bTime)

	backend, err := New(dbm.NewMemDB(), "")
	require.NoError(t, err)
	r, rw := store.New(backend).Split()

	require.NoError(t, rw.SaveLightBlocks(chain.Blocks[1], chain.Blocks[3], chain.Blocks[4]))

	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.EqualValues(t, 1, all[0].Height)
	assert.EqualValues(t, 3, all[1].Height)
	assert.EqualValues(t, 4, all[2].Height)

	height, ok, err := r.LatestHeight()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 4, height)

	lb, err := r.LightBlockBefore(3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, lb.Height)
}

func TestParseLbKey(t *testing.T) {
	s := &dbs{prefix: "pre"}

	prefix, height, err := parseLbKey(s.lbKey(42))
	require.NoError(t, err)
	assert.Equal(t, "pre", prefix)
	assert.EqualValues(t, 42, height)

	_, _, err = parseLbKey(s.sizeKey())
	assert.Error(t, err)
}

func TestMisplacedLightBlockIsRejected(t *testing.T) {
	chain := factory.GenChain(t, factory.DefaultTestChainID, 2, 4, 0, bTime)
	db := dbm.NewMemDB()
	backend, err := New(db, "misplaced")
	require.NoError(t, err)
	require.NoError(t, backend.Set(chain.Blocks[1]))

	lbpb, err := chain.Blocks[2].ToProto()
	require.NoError(t, err)
	bz, err := proto.Marshal(lbpb)
	require.NoError(t, err)
	require.NoError(t, db.Set(backend.(*dbs).lbKey(5), bz))

	_, err = backend.Last()
	assert.Error(t, err)
	_, err = backend.Before(6)
	assert.Error(t, err)
	err = backend.Ascend(func(*types.LightBlock) bool { return true })
	assert.Error(t, err)

	lb, err := backend.Before(5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, lb.Height)
}
