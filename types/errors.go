package types

import (
	"errors"
	"fmt"

	"github.com/tendermint/lightnode/crypto"
)

const (
	// MaxSignatureSize is a maximum allowed signature size for the Commit.
	MaxSignatureSize = 64
)

// ValidateHash returns an error if the hash is not empty, but its
// size != crypto.HashSize.
func ValidateHash(h []byte) error {
	if len(h) > 0 && len(h) != crypto.HashSize {
		return fmt.Errorf("expected size to be %d bytes, got %d bytes",
			crypto.HashSize,
			len(h),
		)
	}
	return nil
}

var (
	// ErrNilValidatorSet is returned when a validator set is required but
	// missing.
	ErrNilValidatorSet = errors.New("nil validator set")
	// ErrNilCommit is returned when a commit is required but missing.
	ErrNilCommit = errors.New("nil commit")
)

// ErrInvalidCommitHeight is returned when we encounter a commit with an
// unexpected height.
type ErrInvalidCommitHeight struct {
	Expected uint64
	Actual   uint64
}

func NewErrInvalidCommitHeight(expected, actual uint64) ErrInvalidCommitHeight {
	return ErrInvalidCommitHeight{
		Expected: expected,
		Actual:   actual,
	}
}

func (e ErrInvalidCommitHeight) Error() string {
	return fmt.Sprintf("Invalid commit -- wrong height: %v vs %v", e.Expected, e.Actual)
}

// ErrInvalidCommitSignatures is returned when we encounter a commit where
// the number of signatures doesn't match the number of validators.
type ErrInvalidCommitSignatures struct {
	Expected int
	Actual   int
}

func NewErrInvalidCommitSignatures(expected, actual int) ErrInvalidCommitSignatures {
	return ErrInvalidCommitSignatures{
		Expected: expected,
		Actual:   actual,
	}
}

func (e ErrInvalidCommitSignatures) Error() string {
	return fmt.Sprintf("Invalid commit -- wrong set size: %v vs %v", e.Expected, e.Actual)
}

// ErrNotEnoughVotingPowerSigned is returned when not enough validators signed
// a commit.
type ErrNotEnoughVotingPowerSigned struct {
	Got    int64
	Needed int64
}

func (e ErrNotEnoughVotingPowerSigned) Error() string {
	return fmt.Sprintf("invalid commit -- insufficient voting power: got %d, needed %d", e.Got, e.Needed)
}

// IsErrNotEnoughVotingPowerSigned returns true if err is
// ErrNotEnoughVotingPowerSigned.
func IsErrNotEnoughVotingPowerSigned(err error) bool {
	return errors.As(err, &ErrNotEnoughVotingPowerSigned{})
}
