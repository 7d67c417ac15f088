// Package proxy serves the trusted store of a light node over HTTP.
//
// The light block route speaks the same protocol the http provider consumes,
// so a light node can act as the remote of another light node.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/tendermint/lightnode/libs/log"
	httpp "github.com/tendermint/lightnode/light/provider/http"
	"github.com/tendermint/lightnode/light/store"
)

const (
	// StatusPath reports the latest trusted light block.
	StatusPath = "/status"
	// MetricsPath exposes prometheus metrics.
	MetricsPath = "/metrics"

	shutdownTimeout = 5 * time.Second
)

// Option sets an optional parameter on the Proxy.
type Option func(*Proxy)

// Logger sets the logger.
func Logger(l log.Logger) Option {
	return func(p *Proxy) {
		p.logger = l
	}
}

// CORSAllowedOrigins enables CORS for the given origins.
func CORSAllowedOrigins(origins ...string) Option {
	return func(p *Proxy) {
		p.corsOrigins = origins
	}
}

// Proxy is an HTTP server exposing a read-only view of the trusted store.
type Proxy struct {
	addr        string
	reader      store.Reader
	logger      log.Logger
	corsOrigins []string
}

// New returns a proxy serving reader on laddr ("tcp://host:port" or
// "host:port").
func New(laddr string, reader store.Reader, opts ...Option) *Proxy {
	p := &Proxy{
		addr:   strings.TrimPrefix(laddr, "tcp://"),
		reader: reader,
		logger: log.NewNopLogger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handler returns the routes of the proxy.
func (p *Proxy) Handler() http.Handler {
	mux := http.NewServeMux()
	r := routes{reader: p.reader, logger: p.logger}
	mux.HandleFunc(httpp.LightBlockPath, r.lightBlock)
	mux.HandleFunc(StatusPath, r.status)
	mux.Handle(MetricsPath, promhttp.Handler())

	var rootHandler http.Handler = mux
	if len(p.corsOrigins) > 0 {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins: p.corsOrigins,
			AllowedMethods: []string{http.MethodHead, http.MethodGet},
		})
		rootHandler = corsMiddleware.Handler(mux)
	}
	return rootHandler
}

// ListenAndServe serves until ctx is done, then shuts the server down.
func (p *Proxy) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}
	return p.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (p *Proxy) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		p.logger.Info("Serving trusted light blocks", "addr", listener.Addr().String())
		errc <- server.Serve(listener)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
