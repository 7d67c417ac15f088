package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tendermint/lightnode/light/provider"
	"github.com/tendermint/lightnode/types"
)

// Mock is a deterministic in-memory provider. Failures can be injected per
// height to simulate an unreliable node.
type Mock struct {
	id string

	mtx         sync.Mutex
	lightBlocks map[uint64]*types.LightBlock
	failures    map[uint64]error
	latest      uint64
	calls       []uint64
}

var _ provider.Provider = (*Mock)(nil)

// New creates a mock provider with the given set of light blocks.
func New(id string, lightBlocks map[uint64]*types.LightBlock) *Mock {
	m := &Mock{
		id:          id,
		lightBlocks: make(map[uint64]*types.LightBlock, len(lightBlocks)),
		failures:    make(map[uint64]error),
	}
	for h, lb := range lightBlocks {
		m.lightBlocks[h] = lb
		if h > m.latest {
			m.latest = h
		}
	}
	return m
}

func (p *Mock) String() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	heights := make([]uint64, 0, len(p.lightBlocks))
	for h := range p.lightBlocks {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	var headers strings.Builder
	for _, h := range heights {
		fmt.Fprintf(&headers, " %d:%X", h, p.lightBlocks[h].Hash())
	}

	return fmt.Sprintf("Mock{id: %s, headers:%s}", p.id, headers.String())
}

// LightBlock returns the light block at height, or the latest one for height 0.
func (p *Mock) LightBlock(ctx context.Context, height uint64) (*types.LightBlock, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.calls = append(p.calls, height)

	if err := ctx.Err(); err != nil {
		return nil, provider.ErrNoResponse
	}
	if err, ok := p.failures[height]; ok {
		return nil, err
	}

	if height == 0 {
		height = p.latest
	}
	if height > p.latest {
		return nil, provider.ErrHeightTooHigh
	}
	if lb, ok := p.lightBlocks[height]; ok {
		return lb, nil
	}
	return nil, provider.ErrLightBlockNotFound
}

// FailAt makes every request for height return err.
func (p *Mock) FailAt(height uint64, err error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.failures[height] = err
}

// AddLightBlock adds or replaces a light block, e.g. to grow the chain.
func (p *Mock) AddLightBlock(lb *types.LightBlock) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.lightBlocks[lb.Height] = lb
	if lb.Height > p.latest {
		p.latest = lb.Height
	}
}

// Calls returns the heights requested so far, in order.
func (p *Mock) Calls() []uint64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return append([]uint64(nil), p.calls...)
}
