package light

import (
	"errors"
	"fmt"
	"time"

	tmbytes "github.com/tendermint/lightnode/libs/bytes"
	"github.com/tendermint/lightnode/types"
)

//-----------------------------------------------------------------------------
// Verifier errors

// ErrOldHeaderExpired means the old (trusted) header has expired according to
// the given trustingPeriod and current time. If so, the light client must be
// reset subjectively.
type ErrOldHeaderExpired struct {
	At  time.Time
	Now time.Time
}

func (e ErrOldHeaderExpired) Error() string {
	return fmt.Sprintf("old header has expired at %v (now: %v)", e.At, e.Now)
}

// ErrInvalidHeader means the untrusted light block failed basic validation.
type ErrInvalidHeader struct {
	Reason error
}

func (e ErrInvalidHeader) Error() string {
	return fmt.Sprintf("invalid header: %v", e.Reason)
}

func (e ErrInvalidHeader) Unwrap() error { return e.Reason }

// ErrValidatorSetMismatch means the validator set shipped with a light block
// does not hash to what its header declares.
type ErrValidatorSetMismatch struct {
	Height   uint64
	Declared tmbytes.HexBytes
	Computed tmbytes.HexBytes
	// Next is true when the next validator set is at fault.
	Next bool
}

func (e ErrValidatorSetMismatch) Error() string {
	which := "validators"
	if e.Next {
		which = "next validators"
	}
	return fmt.Sprintf("%s hash mismatch at height %d: header declares %X, set hashes to %X",
		which, e.Height, e.Declared, e.Computed)
}

// ErrNonIncreasingHeight means the untrusted header is not above the trusted
// one.
type ErrNonIncreasingHeight struct {
	Got     uint64
	Trusted uint64
}

func (e ErrNonIncreasingHeight) Error() string {
	return fmt.Sprintf("expected new header height %d to be greater than one of old header %d",
		e.Got, e.Trusted)
}

// ErrNonMonotonicTime means the untrusted header is not later than the
// trusted one.
type ErrNonMonotonicTime struct {
	Got     time.Time
	Trusted time.Time
}

func (e ErrNonMonotonicTime) Error() string {
	return fmt.Sprintf("expected new header time %v to be after old header time %v", e.Got, e.Trusted)
}

// ErrHeaderFromFuture means the untrusted header time is beyond now plus the
// allowed clock drift.
type ErrHeaderFromFuture struct {
	Time          time.Time
	Now           time.Time
	MaxClockDrift time.Duration
}

func (e ErrHeaderFromFuture) Error() string {
	return fmt.Sprintf("new header has a time from the future %v (now: %v; max clock drift: %v)",
		e.Time, e.Now, e.MaxClockDrift)
}

// ErrInvalidAdjacentHeaders means the untrusted header directly follows the
// trusted one but was not produced by the validator set the trusted header
// announced.
type ErrInvalidAdjacentHeaders struct {
	Expected tmbytes.HexBytes
	Got      tmbytes.HexBytes
}

func (e ErrInvalidAdjacentHeaders) Error() string {
	return fmt.Sprintf("expected old header next validators (%X) to match those from new header (%X)",
		e.Expected, e.Got)
}

// ErrNewValSetCantBeTrusted means the new validator set cannot be trusted
// because < 1/3rd (+trustLevel+) of the old validator set has signed.
type ErrNewValSetCantBeTrusted struct {
	Reason types.ErrNotEnoughVotingPowerSigned
}

func (e ErrNewValSetCantBeTrusted) Error() string {
	return fmt.Sprintf("cant trust new val set: %v", e.Reason)
}

func (e ErrNewValSetCantBeTrusted) Unwrap() error { return e.Reason }

// ErrInvalidCommit means a commit carries a bad signature, a double vote, or
// not enough voting power from its own validator set.
type ErrInvalidCommit struct {
	Reason error
}

func (e ErrInvalidCommit) Error() string {
	return fmt.Sprintf("invalid commit: %v", e.Reason)
}

func (e ErrInvalidCommit) Unwrap() error { return e.Reason }

//-----------------------------------------------------------------------------
// Scheduler errors

// ErrTargetNotAhead means a run was asked to verify a height at or below the
// trusted state.
type ErrTargetNotAhead struct {
	Target  uint64
	Trusted uint64
}

func (e ErrTargetNotAhead) Error() string {
	return fmt.Sprintf("target height %d is not above trusted height %d", e.Target, e.Trusted)
}

// ErrUnexpectedHeight means Io returned a light block for another height.
type ErrUnexpectedHeight struct {
	Expected uint64
	Got      uint64
}

func (e ErrUnexpectedHeight) Error() string {
	return fmt.Sprintf("expected light block at height %d, got %d", e.Expected, e.Got)
}

// ErrConflictingTrustedBlock means a fetched light block differs from the one
// already trusted at the same height.
type ErrConflictingTrustedBlock struct {
	Height  uint64
	Trusted tmbytes.HexBytes
	Got     tmbytes.HexBytes
}

func (e ErrConflictingTrustedBlock) Error() string {
	return fmt.Sprintf("light block %X at height %d conflicts with trusted block %X",
		e.Got, e.Height, e.Trusted)
}

// ErrVerificationFailed means either sequential or skipping verification has
// failed to verify from header #1 to header #2 due to some reason.
type ErrVerificationFailed struct {
	From   uint64
	To     uint64
	Reason error
}

// Unwrap returns underlying reason.
func (e ErrVerificationFailed) Unwrap() error {
	return e.Reason
}

func (e ErrVerificationFailed) Error() string {
	return fmt.Sprintf(
		"verify from #%d to #%d failed: %v",
		e.From, e.To, e.Reason)
}

// ErrBisectionExhausted means a block adjacent to the trusted state still
// could not be trusted, so there is nothing left to bisect.
type ErrBisectionExhausted struct {
	From   uint64
	To     uint64
	Reason error
}

func (e ErrBisectionExhausted) Unwrap() error { return e.Reason }

func (e ErrBisectionExhausted) Error() string {
	return fmt.Sprintf("bisection from #%d to #%d exhausted: %v", e.From, e.To, e.Reason)
}

// ErrUnexpectedResponse means a run was resumed with a response it was not
// waiting for.
type ErrUnexpectedResponse struct {
	Expected string
	Got      SchedulerResponse
}

func (e ErrUnexpectedResponse) Error() string {
	return fmt.Sprintf("unexpected scheduler response: expected %s, got %T", e.Expected, e.Got)
}

// ErrRunFinished is returned when a finished run is resumed.
var ErrRunFinished = errors.New("scheduler run already finished")

//-----------------------------------------------------------------------------
// Demuxer errors

// ErrNoTrustedState means the trusted store is empty; the node must be
// initialized subjectively first.
var ErrNoTrustedState = errors.New("no trusted state")

// ErrScheduler wraps a failure reported by the scheduler.
type ErrScheduler struct {
	Reason error
}

func (e ErrScheduler) Error() string { return fmt.Sprintf("scheduler: %v", e.Reason) }

func (e ErrScheduler) Unwrap() error { return e.Reason }

// ErrVerifier wraps a failure reported by the verifier.
type ErrVerifier struct {
	Reason error
}

func (e ErrVerifier) Error() string { return fmt.Sprintf("verifier: %v", e.Reason) }

func (e ErrVerifier) Unwrap() error { return e.Reason }

// ErrIo wraps a failure to fetch a light block.
type ErrIo struct {
	Height uint64
	Reason error
}

func (e ErrIo) Error() string {
	return fmt.Sprintf("io: fetching light block #%d: %v", e.Height, e.Reason)
}

func (e ErrIo) Unwrap() error { return e.Reason }

// ErrStore wraps a failure to read or commit trusted state.
type ErrStore struct {
	Reason error
}

func (e ErrStore) Error() string { return fmt.Sprintf("store: %v", e.Reason) }

func (e ErrStore) Unwrap() error { return e.Reason }

// ErrInvalidOptions means the verification options failed validation.
type ErrInvalidOptions struct {
	Reason error
}

func (e ErrInvalidOptions) Error() string { return fmt.Sprintf("invalid options: %v", e.Reason) }

func (e ErrInvalidOptions) Unwrap() error { return e.Reason }
