package light

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	tmbytes "github.com/tendermint/lightnode/libs/bytes"
	"github.com/tendermint/lightnode/libs/log"
	"github.com/tendermint/lightnode/light/provider"
	"github.com/tendermint/lightnode/light/store"
	"github.com/tendermint/lightnode/types"
)

// DemuxerOption sets an optional parameter on the Demuxer.
type DemuxerOption func(*Demuxer)

// DemuxerLogger sets the logger.
func DemuxerLogger(l log.Logger) DemuxerOption {
	return func(d *Demuxer) {
		d.logger = l
	}
}

// DemuxerMetrics sets the metrics.
func DemuxerMetrics(m *Metrics) DemuxerOption {
	return func(d *Demuxer) {
		d.metrics = m
	}
}

// DemuxerClock sets the clock used to fill in VerificationOptions.Now.
func DemuxerClock(now func() time.Time) DemuxerOption {
	return func(d *Demuxer) {
		d.now = now
	}
}

// Demuxer drives scheduler runs: it answers their requests with the
// provider and the verifier, and commits the resulting trusted states to the
// trusted store once a run succeeds. A failed run leaves the store untouched.
//
// Provider failures abort a run; the provider is expected to have retried
// already.
//
// A Demuxer is not safe for concurrent use: it owns the only writer of the
// trusted store. Readers obtained from the same store may be used
// concurrently with it.
type Demuxer struct {
	state     *State
	scheduler Scheduler
	verifier  Verifier
	io        provider.Provider

	logger  log.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewDemuxer returns a new Demuxer.
func NewDemuxer(
	state *State,
	scheduler Scheduler,
	verifier Verifier,
	io provider.Provider,
	options ...DemuxerOption) *Demuxer {

	d := &Demuxer{
		state:     state,
		scheduler: scheduler,
		verifier:  verifier,
		io:        io,
		logger:    log.NewNopLogger(),
		metrics:   NopMetrics(),
		now:       time.Now,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// VerifyHeight fetches the light block at height and brings it into trust,
// starting from trustedState. It returns the newly trusted light blocks in
// increasing height order, the last being the one at height.
func (d *Demuxer) VerifyHeight(
	ctx context.Context,
	height uint64,
	trustedState *types.LightBlock,
	opts VerificationOptions) ([]*types.LightBlock, error) {

	opts, err := d.prepare(opts)
	if err != nil {
		return nil, err
	}
	return d.runAndCommit(ctx, "VerifyHeight", VerifyHeightInput{
		Height:       height,
		TrustedState: trustedState,
		Options:      opts,
	})
}

// VerifyLightBlock brings lightBlock into trust, starting from trustedState.
// It returns the newly trusted light blocks in increasing height order, the
// last being lightBlock.
func (d *Demuxer) VerifyLightBlock(
	ctx context.Context,
	lightBlock *types.LightBlock,
	trustedState *types.LightBlock,
	opts VerificationOptions) ([]*types.LightBlock, error) {

	opts, err := d.prepare(opts)
	if err != nil {
		return nil, err
	}
	return d.runAndCommit(ctx, "VerifyLightBlock", VerifyLightBlockInput{
		LightBlock:   lightBlock,
		TrustedState: trustedState,
		Options:      opts,
	})
}

// ValidateLightBlock runs a single verifier step. A light block that passes
// is recorded in the valid store, not in the trusted store.
func (d *Demuxer) ValidateLightBlock(
	lightBlock *types.LightBlock,
	trustedState *types.LightBlock,
	opts VerificationOptions) (*types.LightBlock, error) {

	opts, err := d.prepare(opts)
	if err != nil {
		return nil, err
	}
	lb, err := d.validate(lightBlock, trustedState, opts)
	if err != nil {
		return nil, ErrVerifier{Reason: err}
	}
	return lb, nil
}

// FetchLightBlock fetches the light block at height (0 for the latest) and
// records it in the fetched store.
func (d *Demuxer) FetchLightBlock(ctx context.Context, height uint64) (*types.LightBlock, error) {
	return d.fetch(ctx, height)
}

// InitTrustedState fetches the light block at height and, if its validator
// set hashes to validatorsHash and that set signed it, saves it as the first
// trusted state. This is the subjective initialization of a light node: the
// hash must come from a source the operator trusts.
func (d *Demuxer) InitTrustedState(
	ctx context.Context,
	height uint64,
	validatorsHash tmbytes.HexBytes) (*types.LightBlock, error) {

	logger := d.logger.With("run", uuid.New().String())
	logger.Info("Initializing trusted state", "height", height, "validators_hash", validatorsHash)

	// 1) Fetch and check the light block.
	lb, err := d.fetch(ctx, height)
	if err != nil {
		return nil, err
	}
	if err := lb.ValidateBasic(lb.ChainID); err != nil {
		return nil, ErrVerifier{Reason: ErrInvalidHeader{Reason: err}}
	}
	if height != 0 && lb.Height != height {
		return nil, ErrIo{Height: height, Reason: provider.ErrBadLightBlock{
			Reason: ErrUnexpectedHeight{Expected: height, Got: lb.Height},
		}}
	}
	if !bytes.Equal(lb.ValidatorsHash, validatorsHash) {
		return nil, ErrVerifier{Reason: ErrValidatorSetMismatch{
			Height:   lb.Height,
			Declared: validatorsHash,
			Computed: lb.ValidatorsHash,
		}}
	}

	// 2) Ensure that +2/3 of validators signed correctly.
	err = lb.ValidatorSet.VerifyCommitLight(lb.ChainID, lb.Commit.BlockID, lb.Height, lb.Commit)
	if err != nil {
		return nil, ErrVerifier{Reason: ErrInvalidCommit{Reason: err}}
	}

	// 3) Persist it.
	if err := d.commit(lb); err != nil {
		return nil, err
	}
	logger.Info("Initialized trusted state", "height", lb.Height, "hash", lb.Hash())
	return lb, nil
}

// LatestTrusted returns the trusted light block with the greatest height, or
// ErrNoTrustedState if nothing is trusted yet.
func (d *Demuxer) LatestTrusted() (*types.LightBlock, error) {
	lb, err := d.state.Trusted.Latest()
	switch {
	case errors.Is(err, store.ErrLightBlockNotFound):
		return nil, ErrNoTrustedState
	case err != nil:
		return nil, ErrStore{Reason: err}
	}
	return lb, nil
}

// VerifyLatest fetches the latest light block from the provider and brings it
// into trust from the latest trusted state. It returns no light blocks if
// the provider is not ahead of the trusted state.
func (d *Demuxer) VerifyLatest(ctx context.Context, opts VerificationOptions) ([]*types.LightBlock, error) {
	trusted, err := d.LatestTrusted()
	if err != nil {
		return nil, err
	}

	latest, err := d.fetch(ctx, 0)
	if err != nil {
		return nil, err
	}
	if latest.Height <= trusted.Height {
		d.logger.Debug("No new light blocks", "latest", latest.Height, "trusted", trusted.Height)
		return nil, nil
	}

	lbs, err := d.VerifyLightBlock(ctx, latest, trusted, opts)
	if err != nil {
		return nil, err
	}
	d.logger.Info("Advanced to new state", "height", latest.Height, "hash", latest.Hash())
	return lbs, nil
}

//-----------------------------------------------------------------------------

// prepare validates the options and pins Now, so that every step of a run
// uses the same instant.
func (d *Demuxer) prepare(opts VerificationOptions) (VerificationOptions, error) {
	if err := opts.ValidateBasic(); err != nil {
		return opts, ErrInvalidOptions{Reason: err}
	}
	if opts.Now.IsZero() {
		opts.Now = d.now()
	}
	return opts, nil
}

func (d *Demuxer) runAndCommit(ctx context.Context, op string, input SchedulerInput) ([]*types.LightBlock, error) {
	logger := d.logger.With("run", uuid.New().String(), "op", op)
	start := time.Now()
	defer func() {
		d.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	lbs, err := d.run(ctx, logger, input)
	if err != nil {
		d.metrics.Failures.With("kind", errorKind(err)).Add(1)
		logger.Error("Verification failed", "err", err)
		return nil, err
	}

	if err := d.commit(lbs...); err != nil {
		d.metrics.Failures.With("kind", errorKind(err)).Add(1)
		return nil, err
	}
	if len(lbs) > 0 {
		logger.Info("Verified light block", "height", lbs[len(lbs)-1].Height, "trusted_states", len(lbs))
	}
	return lbs, nil
}

// run drives one scheduler run to completion. Nested verifications are run
// recursively; only the caller of the outermost run commits.
func (d *Demuxer) run(ctx context.Context, logger log.Logger, input SchedulerInput) ([]*types.LightBlock, error) {
	run := d.scheduler.Schedule(d.state.Trusted.Reader, input)

	var resp SchedulerResponse = InitResponse{}
	for {
		req, out, err := run.Resume(resp)
		switch {
		case err != nil:
			return nil, ErrScheduler{Reason: err}
		case out != nil:
			return out.TrustedStates, nil
		case req == nil:
			return nil, ErrScheduler{Reason: errors.New("run returned neither a request nor a result")}
		}

		resp, err = d.handle(ctx, logger, req)
		if err != nil {
			return nil, err
		}
	}
}

func (d *Demuxer) handle(ctx context.Context, logger log.Logger, req SchedulerRequest) (SchedulerResponse, error) {
	switch r := req.(type) {
	case GetLightBlockRequest:
		lb, err := d.fetch(ctx, r.Height)
		if err != nil {
			return nil, err
		}
		return LightBlockResponse{LightBlock: lb}, nil

	case VerifyLightBlockRequest:
		lbs, err := d.run(ctx, logger, VerifyLightBlockInput(r))
		if err != nil {
			var ioErr ErrIo
			if errors.As(err, &ioErr) {
				return nil, ioErr
			}
			var schedErr ErrScheduler
			if errors.As(err, &schedErr) {
				err = schedErr.Reason
			}
		}
		return VerifiedResponse{TrustedStates: lbs, Err: err}, nil

	case ValidateLightBlockRequest:
		if r.LightBlock != nil && r.LightBlock.SignedHeader != nil && r.LightBlock.Header != nil &&
			r.TrustedState != nil && r.TrustedState.SignedHeader != nil && r.TrustedState.Header != nil {
			logger.Debug("Verify light block against trusted state",
				"trusted", r.TrustedState.Height, "height", r.LightBlock.Height)
		}
		lb, err := d.validate(r.LightBlock, r.TrustedState, r.Options)
		return ValidatedResponse{LightBlock: lb, Err: err}, nil

	default:
		return nil, ErrScheduler{Reason: errors.New("unknown scheduler request")}
	}
}

func (d *Demuxer) validate(
	lightBlock, trustedState *types.LightBlock,
	opts VerificationOptions) (*types.LightBlock, error) {

	lb, err := d.verifier.Validate(lightBlock, trustedState, opts)
	if err != nil {
		d.metrics.Validations.With("outcome", "failed").Add(1)
		if errors.As(err, &ErrNewValSetCantBeTrusted{}) {
			d.metrics.BisectionSteps.Add(1)
		}
		return nil, err
	}
	d.metrics.Validations.With("outcome", "ok").Add(1)
	d.state.Valid.Add(lb)
	return lb, nil
}

func (d *Demuxer) fetch(ctx context.Context, height uint64) (*types.LightBlock, error) {
	lb, err := d.io.LightBlock(ctx, height)
	if err != nil {
		return nil, ErrIo{Height: height, Reason: err}
	}
	if lb == nil || lb.SignedHeader == nil || lb.Header == nil {
		return nil, ErrIo{Height: height, Reason: provider.ErrBadLightBlock{Reason: errors.New("empty light block")}}
	}
	d.metrics.Fetches.Add(1)
	d.state.Fetched.Add(lb)
	return lb, nil
}

func (d *Demuxer) commit(lbs ...*types.LightBlock) error {
	if len(lbs) == 0 {
		return nil
	}
	if err := d.state.Trusted.SaveLightBlocks(lbs...); err != nil {
		return ErrStore{Reason: err}
	}
	if height, ok, err := d.state.Trusted.LatestHeight(); err == nil && ok {
		d.metrics.LatestTrustedHeight.Set(float64(height))
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.As(err, &ErrIo{}):
		return "io"
	case errors.As(err, &ErrStore{}):
		return "store"
	case errors.As(err, &ErrVerifier{}):
		return "verifier"
	default:
		return "scheduler"
	}
}
