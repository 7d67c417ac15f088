package light_test

import (
	"context"
	stdlog "log"
	"time"

	dbm "github.com/tendermint/tm-db"

	tmbytes "github.com/tendermint/lightnode/libs/bytes"
	"github.com/tendermint/lightnode/libs/log"
	"github.com/tendermint/lightnode/light"
	httpp "github.com/tendermint/lightnode/light/provider/http"
	"github.com/tendermint/lightnode/light/store"
	dbs "github.com/tendermint/lightnode/light/store/db"
	"github.com/tendermint/lightnode/types"
)

// Subjectively initializing a light node, then following a remote node.
func ExampleDemuxer() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.TestingLogger()

	primary, err := httpp.New("localhost:26657", httpp.ChainID("test-chain"))
	if err != nil {
		stdlog.Fatal(err)
	}

	backend, err := dbs.New(dbm.NewMemDB(), "light-example")
	if err != nil {
		stdlog.Fatal(err)
	}
	_, trusted := store.New(backend).Split()

	state, err := light.NewState(trusted, 1000)
	if err != nil {
		stdlog.Fatal(err)
	}

	d := light.NewDemuxer(state,
		light.NewBisectionScheduler(light.SchedulerLogger(logger)),
		light.NewVerifier(),
		primary,
		light.DemuxerLogger(logger),
	)

	// The validators hash of height 1 is obtained out of band.
	valsHash, err := tmbytes.ParseHexBytes("3FE2453BB45CADB9E80BBD655870EA33677756EC43D0A656448C829185AB0FBF")
	if err != nil {
		stdlog.Fatal(err)
	}
	if _, err := d.InitTrustedState(ctx, 1, valsHash); err != nil {
		stdlog.Fatal(err)
	}

	opts := light.DefaultVerificationOptions(504 * time.Hour) // 21 days

	// verify the block at height 3
	if _, err := d.VerifyHeight(ctx, 3, mustLatest(d), opts); err != nil {
		stdlog.Fatal(err)
	}

	// update to the latest height
	if _, err := d.VerifyLatest(ctx, opts); err != nil {
		stdlog.Fatal(err)
	}

	logger.Info("verified light block", "light-block", mustLatest(d))
}

func mustLatest(d *light.Demuxer) *types.LightBlock {
	lb, err := d.LatestTrusted()
	if err != nil {
		stdlog.Fatal(err)
	}
	return lb
}
