package http_test

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/lightnode/internal/test/factory"
	"github.com/tendermint/lightnode/light/provider"
	lighthttp "github.com/tendermint/lightnode/light/provider/http"
)

func TestNewProvider(t *testing.T) {
	c, err := lighthttp.New("192.168.0.1:26657")
	require.NoError(t, err)
	require.Equal(t, c.String(), "http{http://192.168.0.1:26657}")

	c, err = lighthttp.New("http://153.200.0.1:26657/")
	require.NoError(t, err)
	require.Equal(t, c.String(), "http{http://153.200.0.1:26657}")

	c, err = lighthttp.New("153.200.0.1")
	require.NoError(t, err)
	require.Equal(t, c.String(), "http{http://153.200.0.1}")

	_, err = lighthttp.New("")
	require.Error(t, err)

	_, err = lighthttp.New("153.200.0.1", lighthttp.BaseBackoff(0))
	require.Error(t, err)
}

// testServer serves the chain like a full node would. The first failFirst
// requests get a 500.
func testServer(t *testing.T, chain *factory.Chain, failFirst int32) (*httptest.Server, *int32) {
	var requests int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		n := atomic.AddInt32(&requests, 1)
		if r.URL.Path != lighthttp.LightBlockPath {
			nethttp.NotFound(w, r)
			return
		}
		if n <= failFirst {
			nethttp.Error(w, "try again", nethttp.StatusInternalServerError)
			return
		}

		height := chain.Height()
		if q := r.URL.Query().Get("height"); q != "" {
			h, err := strconv.ParseUint(q, 10, 64)
			if err != nil {
				nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
				return
			}
			height = h
		}
		switch {
		case height > chain.Height():
			nethttp.Error(w, "too high", nethttp.StatusRequestedRangeNotSatisfiable)
			return
		case height == 99:
			_, _ = w.Write([]byte(`{"signed_header": "garbage"}`))
			return
		}
		lb, ok := chain.Blocks[height]
		if !ok {
			nethttp.NotFound(w, r)
			return
		}
		assert.NoError(t, json.NewEncoder(w).Encode(lb))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestProvider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	chain := factory.GenChain(t, factory.DefaultTestChainID, 5, 4, 1, bTime)
	srv, _ := testServer(t, chain, 0)

	p, err := lighthttp.New(srv.URL, lighthttp.ChainID(chain.ChainID), lighthttp.BaseBackoff(time.Millisecond))
	require.NoError(t, err)

	// let's get the highest block
	lb, err := p.LightBlock(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, lb.Height)
	assert.Equal(t, chain.Blocks[5].Hash(), lb.Hash())

	// historical queries
	lb, err = p.LightBlock(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, lb.Height)
	assert.NoError(t, lb.ValidateBasic(chain.ChainID))

	// fetching missing heights should return appropriate errors
	_, err = p.LightBlock(ctx, 9001)
	assert.ErrorIs(t, err, provider.ErrHeightTooHigh)

	delete(chain.Blocks, 2)
	_, err = p.LightBlock(ctx, 2)
	assert.ErrorIs(t, err, provider.ErrLightBlockNotFound)
}

func TestProviderBadLightBlock(t *testing.T) {
	bTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	chain := factory.GenChain(t, factory.DefaultTestChainID, 100, 1, 0, bTime)
	srv, _ := testServer(t, chain, 0)

	p, err := lighthttp.New(srv.URL, lighthttp.BaseBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = p.LightBlock(context.Background(), 99)
	var bad provider.ErrBadLightBlock
	assert.True(t, errors.As(err, &bad), "got %v", err)

	// a provider for another chain rejects the blocks
	p, err = lighthttp.New(srv.URL, lighthttp.ChainID("other-chain"))
	require.NoError(t, err)
	_, err = p.LightBlock(context.Background(), 1)
	assert.True(t, errors.As(err, &bad), "got %v", err)
}

func TestProviderRetriesTransportFailures(t *testing.T) {
	bTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	chain := factory.GenChain(t, factory.DefaultTestChainID, 2, 3, 0, bTime)

	srv, requests := testServer(t, chain, 2)
	p, err := lighthttp.New(srv.URL, lighthttp.BaseBackoff(time.Millisecond), lighthttp.MaxRetryAttempts(3))
	require.NoError(t, err)

	lb, err := p.LightBlock(context.Background(), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, lb.Height)
	assert.EqualValues(t, 3, atomic.LoadInt32(requests))

	// default options retry as well
	srv, requests = testServer(t, chain, 1)
	p, err = lighthttp.New(srv.URL)
	require.NoError(t, err)

	lb, err = p.LightBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, lb.Height)
	assert.EqualValues(t, 2, atomic.LoadInt32(requests))

	// not enough retries
	srv, requests = testServer(t, chain, 10)
	p, err = lighthttp.New(srv.URL, lighthttp.BaseBackoff(time.Millisecond), lighthttp.MaxRetryAttempts(1))
	require.NoError(t, err)

	_, err = p.LightBlock(context.Background(), 2)
	var transport provider.ErrTransport
	assert.True(t, errors.As(err, &transport), "got %v", err)
	assert.EqualValues(t, 2, atomic.LoadInt32(requests))
}

func TestProviderContextCanceled(t *testing.T) {
	bTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	chain := factory.GenChain(t, factory.DefaultTestChainID, 2, 3, 0, bTime)
	srv, _ := testServer(t, chain, 0)

	p, err := lighthttp.New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.LightBlock(ctx, 1)
	assert.ErrorIs(t, err, provider.ErrNoResponse)
}
