package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/spf13/cobra"

	cfg "github.com/tendermint/lightnode/config"
	"github.com/tendermint/lightnode/light"
	"github.com/tendermint/lightnode/light/proxy"
)

const metricsNamespace = "lightnode"

// StartCmd follows the remote node and serves the trusted store.
var StartCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"node", "run"},
	Short:   "Follow the latest light block of the remote and serve the trusted store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		node, err := newLightNode(config, nil, light.PrometheusMetrics(metricsNamespace), logger)
		if err != nil {
			return err
		}
		defer node.Close()

		return runNode(ctx, node, config)
	},
}

func init() {
	def := cfg.DefaultConfig()
	StartCmd.Flags().Duration("sync-interval", def.SyncInterval.Std(),
		"how often the latest light block of the remote is verified")
	StartCmd.Flags().String("laddr", def.ListenAddress, "serve the trusted store on the given address")
}

// runNode initializes the trusted state, then serves the store and follows
// the remote until ctx is done.
func runNode(ctx context.Context, node *lightNode, conf *cfg.Config) error {
	trusted, err := node.ensureTrusted(ctx, conf.SubjectiveInit)
	if err != nil {
		return err
	}
	node.logger.Info("Starting light node", "trusted_height", trusted.Height, "trusted_hash", trusted.Hash())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := proxy.New(conf.ListenAddress, node.reader,
		proxy.Logger(node.logger.With("module", "proxy")),
		proxy.CORSAllowedOrigins(conf.CORSAllowedOrigins...),
	)

	g := taskgroup.New(taskgroup.Trigger(cancel))
	g.Go(func() error { return p.ListenAndServe(ctx) })
	g.Go(func() error { return syncLoop(ctx, node, conf.SyncInterval.Std()) })
	return g.Wait()
}

// syncLoop verifies the latest light block of the remote every interval.
// Failures are logged and retried on the next tick.
func syncLoop(ctx context.Context, node *lightNode, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			lbs, err := node.demuxer.VerifyLatest(ctx, node.opts)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				node.logger.Error("Failed to verify latest light block", "err", err)
				continue
			}
			if len(lbs) > 0 {
				node.logger.Debug("Synced", "height", lbs[len(lbs)-1].Height, "new", len(lbs))
			}
		}
	}
}
