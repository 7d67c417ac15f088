package light_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/lightnode/internal/test/factory"
	"github.com/tendermint/lightnode/libs/log"
	"github.com/tendermint/lightnode/light"
	"github.com/tendermint/lightnode/light/provider/mock"
	"github.com/tendermint/lightnode/light/store"
	"github.com/tendermint/lightnode/types"
)

var (
	chainID        = factory.DefaultTestChainID
	bTime          = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	trustingPeriod = 3 * time.Hour
)

// testOptions returns the default options at the given instant.
func testOptions(now time.Time) light.VerificationOptions {
	opts := light.DefaultVerificationOptions(trustingPeriod)
	opts.Now = now
	return opts
}

// afterChain is an instant just after the last block of chain, well inside
// the trusting period of its first block.
func afterChain(chain *factory.Chain) time.Time {
	return chain.Blocks[chain.Height()].Time.Add(time.Minute)
}

// newTestDemuxer returns a demuxer over a fresh memory store holding the
// trusted light blocks, fetching from a mock provider that serves chain.
func newTestDemuxer(t testing.TB, chain *factory.Chain, now time.Time,
	trusted ...*types.LightBlock) (*light.Demuxer, *mock.Mock, *light.State) {

	t.Helper()

	_, writer := store.NewMemStore().Split()
	require.NoError(t, writer.SaveLightBlocks(trusted...))

	state, err := light.NewState(writer, 100)
	require.NoError(t, err)

	io := mock.New(chain.ChainID, chain.Blocks)
	d := light.NewDemuxer(state,
		light.NewBisectionScheduler(light.SchedulerLogger(log.TestingLogger())),
		light.NewVerifier(),
		io,
		light.DemuxerLogger(log.TestingLogger()),
		light.DemuxerClock(func() time.Time { return now }),
	)
	return d, io, state
}

// newCountingDemuxer is like newTestDemuxer, trusting the first block of
// chain and counting bisection steps and fetches.
func newCountingDemuxer(t testing.TB, chain *factory.Chain) (*light.Demuxer, *light.Metrics) {
	t.Helper()

	_, writer := store.NewMemStore().Split()
	require.NoError(t, writer.SaveLightBlocks(chain.Blocks[1]))
	state, err := light.NewState(writer, 100)
	require.NoError(t, err)

	m := light.NopMetrics()
	m.BisectionSteps = new(countingCounter)
	m.Fetches = new(countingCounter)

	now := afterChain(chain)
	d := light.NewDemuxer(state,
		light.NewBisectionScheduler(),
		light.NewVerifier(),
		mock.New(chain.ChainID, chain.Blocks),
		light.DemuxerMetrics(m),
		light.DemuxerClock(func() time.Time { return now }),
	)
	return d, m
}

// countingCounter counts whole increments, ignoring labels.
type countingCounter struct{ n int64 }

var _ metrics.Counter = (*countingCounter)(nil)

func (c *countingCounter) With(...string) metrics.Counter { return c }
func (c *countingCounter) Add(delta float64)              { atomic.AddInt64(&c.n, int64(delta)) }
func (c *countingCounter) Value() int64                   { return atomic.LoadInt64(&c.n) }
