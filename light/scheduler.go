package light

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tendermint/lightnode/libs/log"
	"github.com/tendermint/lightnode/light/store"
	"github.com/tendermint/lightnode/types"
)

// SchedulerInput starts a scheduler run.
type SchedulerInput interface {
	isSchedulerInput()
}

// VerifyHeightInput asks to bring the light block at Height into trust,
// starting from TrustedState.
type VerifyHeightInput struct {
	Height       uint64
	TrustedState *types.LightBlock
	Options      VerificationOptions
}

// VerifyLightBlockInput asks to bring LightBlock into trust, starting from
// TrustedState.
type VerifyLightBlockInput struct {
	LightBlock   *types.LightBlock
	TrustedState *types.LightBlock
	Options      VerificationOptions
}

func (VerifyHeightInput) isSchedulerInput()     {}
func (VerifyLightBlockInput) isSchedulerInput() {}

// SchedulerRequest is a side effect a run needs before it can continue.
type SchedulerRequest interface {
	isSchedulerRequest()
}

// GetLightBlockRequest asks for the light block at Height.
type GetLightBlockRequest struct {
	Height uint64
}

// VerifyLightBlockRequest asks for a nested verification of LightBlock from
// TrustedState. It is answered with a VerifiedResponse.
type VerifyLightBlockRequest struct {
	LightBlock   *types.LightBlock
	TrustedState *types.LightBlock
	Options      VerificationOptions
}

// ValidateLightBlockRequest asks the verifier to check a single step. It is
// answered with a ValidatedResponse.
type ValidateLightBlockRequest struct {
	LightBlock   *types.LightBlock
	TrustedState *types.LightBlock
	Options      VerificationOptions
}

func (GetLightBlockRequest) isSchedulerRequest()      {}
func (VerifyLightBlockRequest) isSchedulerRequest()   {}
func (ValidateLightBlockRequest) isSchedulerRequest() {}

// SchedulerResponse resumes a run.
type SchedulerResponse interface {
	isSchedulerResponse()
}

// InitResponse is the first response of every run.
type InitResponse struct{}

// LightBlockResponse answers a GetLightBlockRequest.
type LightBlockResponse struct {
	LightBlock *types.LightBlock
}

// VerifiedResponse answers a VerifyLightBlockRequest.
type VerifiedResponse struct {
	TrustedStates []*types.LightBlock
	Err           error
}

// ValidatedResponse answers a ValidateLightBlockRequest.
type ValidatedResponse struct {
	LightBlock *types.LightBlock
	Err        error
}

func (InitResponse) isSchedulerResponse()       {}
func (LightBlockResponse) isSchedulerResponse() {}
func (VerifiedResponse) isSchedulerResponse()   {}
func (ValidatedResponse) isSchedulerResponse()  {}

// SchedulerOutput is the result of a successful run: the newly trusted light
// blocks in increasing height order, the starting trusted state excluded.
type SchedulerOutput struct {
	TrustedStates []*types.LightBlock
}

// SchedulerRun is a suspended scheduler computation.
type SchedulerRun interface {
	// Resume feeds the answer to the previous request (InitResponse on the
	// first call). Exactly one of the results is non-nil: the next request,
	// the final output, or an error. A run is finished once it returns an
	// output or an error.
	Resume(resp SchedulerResponse) (SchedulerRequest, *SchedulerOutput, error)
}

// Scheduler decides which light blocks to fetch and validate to bring a
// target into trust. It performs no Io itself: each run yields requests
// that the caller answers.
type Scheduler interface {
	Schedule(trusted store.Reader, input SchedulerInput) SchedulerRun
}

// SchedulerOption sets an optional parameter on the bisection scheduler.
type SchedulerOption func(*BisectionScheduler)

// SchedulerLogger sets the logger.
func SchedulerLogger(l log.Logger) SchedulerOption {
	return func(s *BisectionScheduler) {
		s.logger = l
	}
}

// BisectionScheduler is the skipping (bisection) Scheduler: it tries to jump
// straight to the target and, whenever the trusted validators cannot vouch
// for a block, verifies the midpoint first.
//
// It is stateless; all state lives in the runs it creates.
type BisectionScheduler struct {
	logger log.Logger
}

var _ Scheduler = (*BisectionScheduler)(nil)

// NewBisectionScheduler returns a new bisection scheduler.
func NewBisectionScheduler(options ...SchedulerOption) *BisectionScheduler {
	s := &BisectionScheduler{logger: log.NewNopLogger()}
	for _, o := range options {
		o(s)
	}
	return s
}

// Schedule implements Scheduler.
func (s *BisectionScheduler) Schedule(trusted store.Reader, input SchedulerInput) SchedulerRun {
	switch in := input.(type) {
	case VerifyHeightInput:
		return &verifyHeightRun{
			logger:  s.logger,
			reader:  trusted,
			target:  in.Height,
			trusted: in.TrustedState,
			opts:    in.Options,
		}
	case VerifyLightBlockInput:
		return &verifyLightBlockRun{
			logger:  s.logger,
			reader:  trusted,
			target:  in.LightBlock,
			trusted: in.TrustedState,
			opts:    in.Options,
		}
	default:
		return failedRun{fmt.Errorf("unknown scheduler input %T", input)}
	}
}

type failedRun struct{ err error }

func (r failedRun) Resume(SchedulerResponse) (SchedulerRequest, *SchedulerOutput, error) {
	return nil, nil, r.err
}

type runState int

const (
	stateInit runState = iota
	stateAwaitLightBlock
	stateAwaitVerified
	stateAwaitValidated
	stateDone
)

//-----------------------------------------------------------------------------

// verifyHeightRun fetches the target light block and verifies it in a nested
// run.
type verifyHeightRun struct {
	logger  log.Logger
	reader  store.Reader
	target  uint64
	trusted *types.LightBlock
	opts    VerificationOptions

	state runState
}

func (r *verifyHeightRun) Resume(resp SchedulerResponse) (SchedulerRequest, *SchedulerOutput, error) {
	req, out, err := r.resume(resp)
	if err != nil || out != nil {
		r.state = stateDone
	}
	return req, out, err
}

func (r *verifyHeightRun) resume(resp SchedulerResponse) (SchedulerRequest, *SchedulerOutput, error) {
	switch r.state {
	case stateInit:
		if _, ok := resp.(InitResponse); !ok {
			return nil, nil, ErrUnexpectedResponse{Expected: "InitResponse", Got: resp}
		}
		if err := checkTrustedState(r.trusted); err != nil {
			return nil, nil, err
		}
		if r.target <= r.trusted.Height {
			return nil, nil, ErrTargetNotAhead{Target: r.target, Trusted: r.trusted.Height}
		}
		r.state = stateAwaitLightBlock
		return GetLightBlockRequest{Height: r.target}, nil, nil

	case stateAwaitLightBlock:
		lbResp, ok := resp.(LightBlockResponse)
		if !ok {
			return nil, nil, ErrUnexpectedResponse{Expected: "LightBlockResponse", Got: resp}
		}
		lb := lbResp.LightBlock
		if err := checkFetched(lb, r.target); err != nil {
			return nil, nil, err
		}
		if err := checkConflict(r.reader, lb); err != nil {
			return nil, nil, err
		}
		r.state = stateAwaitVerified
		return VerifyLightBlockRequest{LightBlock: lb, TrustedState: r.trusted, Options: r.opts}, nil, nil

	case stateAwaitVerified:
		verified, ok := resp.(VerifiedResponse)
		if !ok {
			return nil, nil, ErrUnexpectedResponse{Expected: "VerifiedResponse", Got: resp}
		}
		if verified.Err != nil {
			return nil, nil, ErrVerificationFailed{From: r.trusted.Height, To: r.target, Reason: verified.Err}
		}
		return nil, &SchedulerOutput{TrustedStates: verified.TrustedStates}, nil

	default:
		return nil, nil, ErrRunFinished
	}
}

// checkConflict fails if a different light block is already trusted at the
// height of lb.
func checkConflict(reader store.Reader, lb *types.LightBlock) error {
	existing, err := reader.LightBlock(lb.Height)
	switch {
	case errors.Is(err, store.ErrLightBlockNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("reading trusted store: %w", err)
	}
	if trustedHash, hash := existing.Hash(), lb.Hash(); !bytes.Equal(trustedHash, hash) {
		return ErrConflictingTrustedBlock{Height: lb.Height, Trusted: trustedHash, Got: hash}
	}
	return nil
}

//-----------------------------------------------------------------------------

// verifyLightBlockRun verifies target by skipping from the trusted state as
// far as the trusted validators allow, bisecting whenever they do not.
//
// pending is a stack of fetched but not yet trusted light blocks in
// decreasing height order; pending[0] is the target. depth points at the
// block being validated.
type verifyLightBlockRun struct {
	logger  log.Logger
	reader  store.Reader
	target  *types.LightBlock
	trusted *types.LightBlock
	opts    VerificationOptions

	state   runState
	pending []*types.LightBlock
	depth   int
	pivot   uint64
	result  []*types.LightBlock
}

func (r *verifyLightBlockRun) Resume(resp SchedulerResponse) (SchedulerRequest, *SchedulerOutput, error) {
	req, out, err := r.resume(resp)
	if err != nil || out != nil {
		r.state = stateDone
	}
	return req, out, err
}

func (r *verifyLightBlockRun) resume(resp SchedulerResponse) (SchedulerRequest, *SchedulerOutput, error) {
	switch r.state {
	case stateInit:
		if _, ok := resp.(InitResponse); !ok {
			return nil, nil, ErrUnexpectedResponse{Expected: "InitResponse", Got: resp}
		}
		if err := checkTrustedState(r.trusted); err != nil {
			return nil, nil, err
		}
		if r.target == nil || r.target.SignedHeader == nil || r.target.Header == nil {
			return nil, nil, errors.New("missing target light block")
		}
		if r.target.Height <= r.trusted.Height {
			return nil, nil, ErrTargetNotAhead{Target: r.target.Height, Trusted: r.trusted.Height}
		}
		if err := checkConflict(r.reader, r.target); err != nil {
			return nil, nil, err
		}
		r.pending = []*types.LightBlock{r.target}
		r.depth = 0
		return r.validate(), nil, nil

	case stateAwaitValidated:
		validated, ok := resp.(ValidatedResponse)
		if !ok {
			return nil, nil, ErrUnexpectedResponse{Expected: "ValidatedResponse", Got: resp}
		}
		return r.onValidated(validated.Err)

	case stateAwaitLightBlock:
		lbResp, ok := resp.(LightBlockResponse)
		if !ok {
			return nil, nil, ErrUnexpectedResponse{Expected: "LightBlockResponse", Got: resp}
		}
		if err := checkFetched(lbResp.LightBlock, r.pivot); err != nil {
			return nil, nil, err
		}
		if err := checkConflict(r.reader, lbResp.LightBlock); err != nil {
			return nil, nil, err
		}
		r.pending = append(r.pending, lbResp.LightBlock)
		r.depth = len(r.pending) - 1
		return r.validate(), nil, nil

	default:
		return nil, nil, ErrRunFinished
	}
}

func (r *verifyLightBlockRun) validate() SchedulerRequest {
	lb := r.pending[r.depth]
	r.logger.Debug("Verify light block against trusted state",
		"trusted", r.trusted.Height, "height", lb.Height, "depth", r.depth)
	r.state = stateAwaitValidated
	return ValidateLightBlockRequest{LightBlock: lb, TrustedState: r.trusted, Options: r.opts}
}

func (r *verifyLightBlockRun) onValidated(err error) (SchedulerRequest, *SchedulerOutput, error) {
	current := r.pending[r.depth]

	var cantTrust ErrNewValSetCantBeTrusted
	switch {
	case err == nil:
		r.result = append(r.result, current)
		if r.depth == 0 {
			r.logger.Debug("Verified light block", "height", current.Height, "steps", len(r.result))
			return nil, &SchedulerOutput{TrustedStates: r.result}, nil
		}
		// The validated block becomes the new anchor; retry everything above
		// it, starting from the target.
		r.trusted = current
		r.pending = r.pending[:r.depth]
		r.depth = 0
		return r.validate(), nil, nil

	case errors.As(err, &cantTrust):
		if r.depth < len(r.pending)-1 {
			r.depth++
			return r.validate(), nil, nil
		}

		gap := current.Height - r.trusted.Height
		if gap <= 1 {
			return nil, nil, ErrBisectionExhausted{From: r.trusted.Height, To: current.Height, Reason: err}
		}
		r.pivot = r.trusted.Height + gap/2
		r.logger.Debug("Cannot trust light block, bisecting",
			"trusted", r.trusted.Height, "height", current.Height, "pivot", r.pivot, "err", err)
		r.state = stateAwaitLightBlock
		return GetLightBlockRequest{Height: r.pivot}, nil, nil

	default:
		return nil, nil, ErrVerificationFailed{From: r.trusted.Height, To: current.Height, Reason: err}
	}
}

//-----------------------------------------------------------------------------

func checkTrustedState(trusted *types.LightBlock) error {
	if trusted == nil || trusted.SignedHeader == nil || trusted.Header == nil {
		return errors.New("missing trusted state")
	}
	return nil
}

func checkFetched(lb *types.LightBlock, expected uint64) error {
	if lb == nil || lb.SignedHeader == nil || lb.Header == nil {
		return ErrUnexpectedHeight{Expected: expected}
	}
	if lb.Height != expected {
		return ErrUnexpectedHeight{Expected: expected, Got: lb.Height}
	}
	return nil
}
