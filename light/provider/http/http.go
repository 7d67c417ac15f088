package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tendermint/lightnode/light/provider"
	"github.com/tendermint/lightnode/types"
)

const (
	defaultMaxRetryAttempts = 5
	defaultBaseBackoff      = 100 * time.Millisecond
	defaultTimeout          = 10 * time.Second

	// LightBlockPath is the endpoint serving JSON encoded light blocks.
	LightBlockPath = "/light_block"
)

// http provider fetches light blocks from a remote node over HTTP.
type http struct {
	remote  string
	chainID string
	client  *nethttp.Client

	maxRetryAttempts uint64
	baseBackoff      time.Duration
}

// Option configures the HTTP provider.
type Option func(*http)

// MaxRetryAttempts sets how many times a transport failure is retried before
// the request fails. 0 disables retries.
func MaxRetryAttempts(n uint64) Option {
	return func(p *http) {
		p.maxRetryAttempts = n
	}
}

// BaseBackoff sets the delay before the first retry. Subsequent delays grow
// exponentially.
func BaseBackoff(d time.Duration) Option {
	return func(p *http) {
		p.baseBackoff = d
	}
}

// Timeout bounds every single request.
func Timeout(d time.Duration) Option {
	return func(p *http) {
		p.client.Timeout = d
	}
}

// ChainID makes the provider reject light blocks of any other chain.
func ChainID(chainID string) Option {
	return func(p *http) {
		p.chainID = chainID
	}
}

// New creates a HTTP provider for the node at remote ("host:port" or a URL).
// If no scheme is provided in the remote URL, http will be used by default.
func New(remote string, opts ...Option) (provider.Provider, error) {
	// Ensure URL scheme is set (default HTTP) when not provided.
	if !strings.Contains(remote, "://") {
		remote = "http://" + remote
	}
	u, err := url.Parse(remote)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid remote address %q: missing host", remote)
	}
	remote = strings.TrimRight(remote, "/")

	p := &http{
		remote:           remote,
		client:           &nethttp.Client{Timeout: defaultTimeout},
		maxRetryAttempts: defaultMaxRetryAttempts,
		baseBackoff:      defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.baseBackoff <= 0 {
		return nil, fmt.Errorf("base backoff must be positive, got %v", p.baseBackoff)
	}
	return p, nil
}

func (p *http) String() string {
	return fmt.Sprintf("http{%s}", p.remote)
}

// LightBlock fetches a LightBlock at the given height (0 - the latest) and
// checks it is well formed. Transport failures are retried with exponential
// backoff.
func (p *http) LightBlock(ctx context.Context, height uint64) (*types.LightBlock, error) {
	backoff := retry.WithMaxRetries(p.maxRetryAttempts, retry.NewExponential(p.baseBackoff))

	var lb *types.LightBlock
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		lb, err = p.fetch(ctx, height)
		return err
	})
	switch {
	case err == nil:
		return lb, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, provider.ErrNoResponse
	default:
		return nil, err
	}
}

func (p *http) fetch(ctx context.Context, height uint64) (*types.LightBlock, error) {
	target := p.remote + LightBlockPath
	if height > 0 {
		target += "?height=" + strconv.FormatUint(height, 10)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, target, nil)
	if err != nil {
		return nil, provider.ErrTransport{Reason: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, retry.RetryableError(provider.ErrNoResponse)
		}
		return nil, retry.RetryableError(provider.ErrTransport{Reason: err})
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == nethttp.StatusOK:
	case resp.StatusCode == nethttp.StatusNotFound:
		return nil, provider.ErrLightBlockNotFound
	case resp.StatusCode == nethttp.StatusRequestedRangeNotSatisfiable:
		return nil, provider.ErrHeightTooHigh
	case resp.StatusCode >= nethttp.StatusInternalServerError:
		return nil, retry.RetryableError(provider.ErrTransport{
			Reason: fmt.Errorf("unexpected status %s", resp.Status),
		})
	default:
		return nil, provider.ErrTransport{Reason: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.RetryableError(provider.ErrTransport{Reason: err})
	}

	lb := new(types.LightBlock)
	if err := json.Unmarshal(body, lb); err != nil {
		return nil, provider.ErrBadLightBlock{Reason: err}
	}
	if lb.SignedHeader == nil || lb.Header == nil {
		return nil, provider.ErrBadLightBlock{Reason: errors.New("signed header is nil")}
	}

	chainID := p.chainID
	if chainID == "" {
		chainID = lb.ChainID
	}
	if err := lb.ValidateBasic(chainID); err != nil {
		return nil, provider.ErrBadLightBlock{Reason: err}
	}
	if height > 0 && lb.Height != height {
		return nil, provider.ErrBadLightBlock{
			Reason: fmt.Errorf("expected height %d, got %d", height, lb.Height),
		}
	}

	return lb, nil
}
