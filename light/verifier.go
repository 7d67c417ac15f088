package light

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	tmmath "github.com/tendermint/lightnode/libs/math"
	"github.com/tendermint/lightnode/types"
)

const (
	// DefaultMaxClockDrift is how far into the future a header time may be
	// before it is rejected.
	DefaultMaxClockDrift = 10 * time.Second
)

var (
	// DefaultTrustLevel - new header can be trusted if at least one correct
	// validator signed it.
	DefaultTrustLevel = tmmath.Fraction{Numerator: 1, Denominator: 3}
)

// VerificationOptions are the knobs of a single verification.
type VerificationOptions struct {
	// Fraction of the trusted next validator set's power that must have
	// signed a non-adjacent header. Within [1/3, 1].
	TrustThreshold tmmath.Fraction
	// How long a trusted header stays usable as an anchor.
	TrustingPeriod time.Duration
	// How far a header time may run ahead of Now.
	MaxClockDrift time.Duration
	// Now is the reference time. The zero value means the verifier clock.
	Now time.Time
}

// DefaultVerificationOptions returns options with the default trust level and
// clock drift and the given trusting period.
func DefaultVerificationOptions(trustingPeriod time.Duration) VerificationOptions {
	return VerificationOptions{
		TrustThreshold: DefaultTrustLevel,
		TrustingPeriod: trustingPeriod,
		MaxClockDrift:  DefaultMaxClockDrift,
	}
}

// ValidateBasic performs basic validation.
func (opts VerificationOptions) ValidateBasic() error {
	if opts.TrustingPeriod <= 0 {
		return errors.New("negative or zero trusting period")
	}
	if opts.MaxClockDrift < 0 {
		return errors.New("negative max clock drift")
	}
	return ValidateTrustLevel(opts.TrustThreshold)
}

// Verifier decides whether an untrusted light block can be trusted given a
// trusted one. Implementations are pure: they perform no Io and keep no
// state between calls.
type Verifier interface {
	// Validate returns untrusted if it can be trusted, or an error
	// explaining why not.
	Validate(untrusted, trusted *types.LightBlock, opts VerificationOptions) (*types.LightBlock, error)
}

// VerifierOption sets an optional parameter on the ProdVerifier.
type VerifierOption func(*ProdVerifier)

// VerifierClock sets the clock used when VerificationOptions.Now is zero.
func VerifierClock(now func() time.Time) VerifierOption {
	return func(v *ProdVerifier) {
		v.now = now
	}
}

// ProdVerifier is the production Verifier.
type ProdVerifier struct {
	now func() time.Time
}

var _ Verifier = (*ProdVerifier)(nil)

// NewVerifier returns the production verifier. Its clock defaults to
// time.Now.
func NewVerifier(options ...VerifierOption) *ProdVerifier {
	v := &ProdVerifier{now: time.Now}
	for _, o := range options {
		o(v)
	}
	return v
}

// Validate implements Verifier.
func (v *ProdVerifier) Validate(
	untrusted, trusted *types.LightBlock,
	opts VerificationOptions) (*types.LightBlock, error) {

	now := opts.Now
	if now.IsZero() {
		now = v.now()
	}

	if err := Verify(trusted, untrusted, opts.TrustingPeriod, now, opts.MaxClockDrift, opts.TrustThreshold); err != nil {
		return nil, err
	}
	return untrusted, nil
}

// VerifyNonAdjacent verifies non-adjacent untrusted light block against the
// trusted one. It ensures that:
//
//	a) trusted can still be trusted (if not, ErrOldHeaderExpired is returned)
//	b) untrusted is valid (if not, ErrInvalidHeader or ErrValidatorSetMismatch
//	   is returned)
//	c) trustLevel ([1/3, 1]) of trusted.NextValidatorSet signed correctly
//	   (if not, ErrNewValSetCantBeTrusted is returned)
//	d) more than 2/3 of untrusted.ValidatorSet have signed it
//	   (otherwise, ErrInvalidCommit is returned)
//	e) light blocks are non-adjacent.
//
// maxClockDrift defines how much untrusted.Time can drift into the future.
func VerifyNonAdjacent(
	trusted *types.LightBlock, // height=X
	untrusted *types.LightBlock, // height=Y
	trustingPeriod time.Duration,
	now time.Time,
	maxClockDrift time.Duration,
	trustLevel tmmath.Fraction) error {

	if err := checkTrusted(trusted); err != nil {
		return err
	}
	if HeaderExpired(trusted.SignedHeader, trustingPeriod, now) {
		return ErrOldHeaderExpired{trusted.Time.Add(trustingPeriod), now}
	}
	if err := verifyNewHeaderAndVals(untrusted, trusted, now, maxClockDrift); err != nil {
		return err
	}
	if untrusted.Height == trusted.Height+1 {
		return ErrInvalidHeader{errors.New("headers must be non adjacent in height")}
	}

	// Ensure that +`trustLevel` (default 1/3) or more of the validators the
	// trusted header announced signed correctly.
	err := trusted.NextValidatorSet.VerifyCommitLightTrusting(trusted.ChainID, untrusted.Commit, trustLevel)
	if err != nil {
		var e types.ErrNotEnoughVotingPowerSigned
		if errors.As(err, &e) {
			return ErrNewValSetCantBeTrusted{e}
		}
		return ErrInvalidCommit{err}
	}

	// Ensure that +2/3 of new validators signed correctly.
	//
	// NOTE: this should always be the last check because the untrusted
	// validator set can be intentionally made very large to DOS the light
	// client. not the case for VerifyAdjacent, where validator set is known in
	// advance.
	if err := untrusted.ValidatorSet.VerifyCommitLight(trusted.ChainID, untrusted.Commit.BlockID,
		untrusted.Height, untrusted.Commit); err != nil {
		return ErrInvalidCommit{err}
	}

	return nil
}

// VerifyAdjacent verifies directly adjacent untrusted light block against the
// trusted one. It ensures that:
//
//	a) trusted can still be trusted (if not, ErrOldHeaderExpired is returned)
//	b) untrusted is valid (if not, ErrInvalidHeader or ErrValidatorSetMismatch
//	   is returned)
//	c) untrusted.ValidatorsHash equals trusted.NextValidatorsHash
//	   (if not, ErrInvalidAdjacentHeaders is returned)
//	d) more than 2/3 of untrusted.ValidatorSet have signed it
//	   (otherwise, ErrInvalidCommit is returned)
//	e) light blocks are adjacent.
//
// maxClockDrift defines how much untrusted.Time can drift into the future.
func VerifyAdjacent(
	trusted *types.LightBlock, // height=X
	untrusted *types.LightBlock, // height=X+1
	trustingPeriod time.Duration,
	now time.Time,
	maxClockDrift time.Duration) error {

	if err := checkTrusted(trusted); err != nil {
		return err
	}
	if HeaderExpired(trusted.SignedHeader, trustingPeriod, now) {
		return ErrOldHeaderExpired{trusted.Time.Add(trustingPeriod), now}
	}
	if err := verifyNewHeaderAndVals(untrusted, trusted, now, maxClockDrift); err != nil {
		return err
	}
	if untrusted.Height != trusted.Height+1 {
		return ErrInvalidHeader{errors.New("headers must be adjacent in height")}
	}

	// Check the validator hashes are the same
	if !bytes.Equal(untrusted.ValidatorsHash, trusted.NextValidatorsHash) {
		return ErrInvalidAdjacentHeaders{
			Expected: trusted.NextValidatorsHash,
			Got:      untrusted.ValidatorsHash,
		}
	}

	// Ensure that +2/3 of new validators signed correctly.
	if err := untrusted.ValidatorSet.VerifyCommitLight(trusted.ChainID, untrusted.Commit.BlockID,
		untrusted.Height, untrusted.Commit); err != nil {
		return ErrInvalidCommit{err}
	}

	return nil
}

// Verify combines both VerifyAdjacent and VerifyNonAdjacent functions.
func Verify(
	trusted *types.LightBlock, // height=X
	untrusted *types.LightBlock, // height=Y
	trustingPeriod time.Duration,
	now time.Time,
	maxClockDrift time.Duration,
	trustLevel tmmath.Fraction) error {

	if untrusted != nil && untrusted.SignedHeader != nil && untrusted.Header != nil &&
		trusted != nil && trusted.SignedHeader != nil && trusted.Header != nil &&
		untrusted.Height == trusted.Height+1 {
		return VerifyAdjacent(trusted, untrusted, trustingPeriod, now, maxClockDrift)
	}

	return VerifyNonAdjacent(trusted, untrusted, trustingPeriod, now, maxClockDrift, trustLevel)
}

func checkTrusted(trusted *types.LightBlock) error {
	if trusted == nil || trusted.SignedHeader == nil || trusted.Header == nil {
		return ErrInvalidHeader{errors.New("missing trusted light block")}
	}
	if trusted.NextValidatorSet == nil {
		return ErrInvalidHeader{errors.New("trusted light block has no next validator set")}
	}
	return nil
}

func verifyNewHeaderAndVals(
	untrusted *types.LightBlock,
	trusted *types.LightBlock,
	now time.Time,
	maxClockDrift time.Duration) error {

	if untrusted == nil || untrusted.SignedHeader == nil {
		return ErrInvalidHeader{errors.New("missing signed header")}
	}
	if err := untrusted.SignedHeader.ValidateBasic(trusted.ChainID); err != nil {
		return ErrInvalidHeader{fmt.Errorf("untrusted.ValidateBasic failed: %w", err)}
	}
	if err := validateVals(untrusted); err != nil {
		return err
	}

	if untrusted.Height <= trusted.Height {
		return ErrNonIncreasingHeight{Got: untrusted.Height, Trusted: trusted.Height}
	}

	if !untrusted.Time.After(trusted.Time) {
		return ErrNonMonotonicTime{Got: untrusted.Time, Trusted: trusted.Time}
	}

	if !untrusted.Time.Before(now.Add(maxClockDrift)) {
		return ErrHeaderFromFuture{Time: untrusted.Time, Now: now, MaxClockDrift: maxClockDrift}
	}

	return nil
}

func validateVals(lb *types.LightBlock) error {
	if lb.ValidatorSet == nil {
		return ErrInvalidHeader{errors.New("missing validator set")}
	}
	if lb.NextValidatorSet == nil {
		return ErrInvalidHeader{errors.New("missing next validator set")}
	}
	if err := lb.ValidatorSet.ValidateBasic(); err != nil {
		return ErrInvalidHeader{fmt.Errorf("invalid validator set: %w", err)}
	}
	if err := lb.NextValidatorSet.ValidateBasic(); err != nil {
		return ErrInvalidHeader{fmt.Errorf("invalid next validator set: %w", err)}
	}

	if computed := lb.ValidatorSet.Hash(); !bytes.Equal(lb.ValidatorsHash, computed) {
		return ErrValidatorSetMismatch{
			Height:   lb.Height,
			Declared: lb.ValidatorsHash,
			Computed: computed,
		}
	}
	if computed := lb.NextValidatorSet.Hash(); !bytes.Equal(lb.NextValidatorsHash, computed) {
		return ErrValidatorSetMismatch{
			Height:   lb.Height,
			Declared: lb.NextValidatorsHash,
			Computed: computed,
			Next:     true,
		}
	}
	return nil
}

// ValidateTrustLevel checks that trustLevel is within the allowed range [1/3,
// 1]. If not, it returns an error. 1/3 is the minimum amount of trust needed
// which does not break the security model.
func ValidateTrustLevel(lvl tmmath.Fraction) error {
	if lvl.Numerator*3 < lvl.Denominator || // < 1/3
		lvl.Numerator > lvl.Denominator || // > 1
		lvl.Denominator == 0 {
		return fmt.Errorf("trustLevel must be within [1/3, 1], given %v", lvl)
	}
	return nil
}

// HeaderExpired return true if the given header expired.
func HeaderExpired(h *types.SignedHeader, trustingPeriod time.Duration, now time.Time) bool {
	expirationTime := h.Time.Add(trustingPeriod)
	return !expirationTime.After(now)
}
