package commands

import (
	"context"
	"errors"
	"fmt"

	dbm "github.com/tendermint/tm-db"

	cfg "github.com/tendermint/lightnode/config"
	"github.com/tendermint/lightnode/libs/log"
	"github.com/tendermint/lightnode/light"
	"github.com/tendermint/lightnode/light/provider"
	httpp "github.com/tendermint/lightnode/light/provider/http"
	"github.com/tendermint/lightnode/light/store"
	dbs "github.com/tendermint/lightnode/light/store/db"
	"github.com/tendermint/lightnode/types"
)

const (
	dbName   = "lightnode"
	dbPrefix = "light"
)

// lightNode bundles the demuxer with the trusted store it commits to.
type lightNode struct {
	demuxer *light.Demuxer
	reader  store.Reader
	opts    light.VerificationOptions
	db      dbm.DB
	logger  log.Logger
}

// newLightNode opens the trusted store and wires a demuxer fetching from
// primary. A nil primary means the http provider of conf.RPCAddress.
func newLightNode(
	conf *cfg.Config,
	primary provider.Provider,
	metrics *light.Metrics,
	logger log.Logger) (*lightNode, error) {

	opts, err := conf.VerificationOptions()
	if err != nil {
		return nil, err
	}

	if primary == nil {
		primary, err = httpp.New(conf.RPCAddress)
		if err != nil {
			return nil, fmt.Errorf("can't create a provider: %w", err)
		}
	}

	db, err := dbm.NewDB(dbName, dbm.BackendType(conf.DBBackend), conf.DBDir())
	if err != nil {
		return nil, fmt.Errorf("can't create a db: %w", err)
	}
	backend, err := dbs.New(db, dbPrefix)
	if err != nil {
		db.Close()
		return nil, err
	}
	reader, trusted := store.New(backend).Split()

	state, err := light.NewState(trusted, conf.CacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	demuxer := light.NewDemuxer(
		state,
		light.NewBisectionScheduler(light.SchedulerLogger(logger)),
		light.NewVerifier(),
		primary,
		light.DemuxerLogger(logger),
		light.DemuxerMetrics(metrics),
	)

	return &lightNode{
		demuxer: demuxer,
		reader:  reader,
		opts:    opts,
		db:      db,
		logger:  logger,
	}, nil
}

// ensureTrusted returns the latest trusted light block, initializing the
// trusted store from the subjective-init section when it is empty.
func (n *lightNode) ensureTrusted(ctx context.Context, subjInit cfg.SubjectiveInitConfig) (*types.LightBlock, error) {
	lb, err := n.demuxer.LatestTrusted()
	switch {
	case err == nil:
		if subjInit.Height > 0 {
			n.logger.Info("Trusted store is not empty, ignoring subjective-init", "latest", lb.Height)
		}
		return lb, nil
	case !errors.Is(err, light.ErrNoTrustedState):
		return nil, err
	}

	if subjInit.Height == 0 {
		return nil, errors.New("no trusted state: set height and validators-hash in the [subjective-init] section")
	}
	return n.demuxer.InitTrustedState(ctx, subjInit.Height, subjInit.ValidatorsHash)
}

func (n *lightNode) Close() error {
	return n.db.Close()
}
