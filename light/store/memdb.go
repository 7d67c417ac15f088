package store

import (
	"github.com/google/btree"

	"github.com/tendermint/lightnode/types"
)

const btreeDegree = 32

type lbItem struct {
	height uint64
	lb     *types.LightBlock
}

func (i lbItem) Less(than btree.Item) bool {
	return i.height < than.(lbItem).height
}

type memBackend struct {
	tree *btree.BTree
}

var _ Backend = (*memBackend)(nil)

// NewMemBackend returns a Backend kept in an in-memory B-tree.
func NewMemBackend() Backend {
	return &memBackend{tree: btree.New(btreeDegree)}
}

func (m *memBackend) Get(height uint64) (*types.LightBlock, error) {
	item := m.tree.Get(lbItem{height: height})
	if item == nil {
		return nil, ErrLightBlockNotFound
	}
	return item.(lbItem).lb, nil
}

func (m *memBackend) Set(lbs ...*types.LightBlock) error {
	for _, lb := range lbs {
		m.tree.ReplaceOrInsert(lbItem{height: lb.Height, lb: lb})
	}
	return nil
}

func (m *memBackend) Last() (*types.LightBlock, error) {
	item := m.tree.Max()
	if item == nil {
		return nil, ErrLightBlockNotFound
	}
	return item.(lbItem).lb, nil
}

func (m *memBackend) Before(height uint64) (*types.LightBlock, error) {
	if height == 0 {
		return nil, ErrLightBlockNotFound
	}

	var found *types.LightBlock
	m.tree.DescendLessOrEqual(lbItem{height: height - 1}, func(i btree.Item) bool {
		found = i.(lbItem).lb
		return false
	})
	if found == nil {
		return nil, ErrLightBlockNotFound
	}
	return found, nil
}

func (m *memBackend) Ascend(fn func(lb *types.LightBlock) bool) error {
	m.tree.Ascend(func(i btree.Item) bool {
		return fn(i.(lbItem).lb)
	})
	return nil
}

func (m *memBackend) Size() int {
	return m.tree.Len()
}
