package types_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/lightnode/internal/test/factory"
	tmmath "github.com/tendermint/lightnode/libs/math"
	"github.com/tendermint/lightnode/types"
)

const chainID = factory.DefaultTestChainID

var bTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestValidatorSetCanonicalOrder(t *testing.T) {
	keys := factory.GenPrivKeys(4)
	vals := keys.ToValidators(1, 1)

	for i := 1; i < vals.Size(); i++ {
		assert.GreaterOrEqual(t, vals.Validators[i-1].VotingPower, vals.Validators[i].VotingPower)
	}
	assert.EqualValues(t, 1+2+3+4, vals.TotalVotingPower())
	require.NoError(t, vals.ValidateBasic())

	// the hash depends on the canonical order only
	reversed := make([]*types.Validator, vals.Size())
	for i, v := range vals.Validators {
		reversed[vals.Size()-1-i] = v
	}
	assert.Equal(t, vals.Hash(), types.NewValidatorSet(reversed).Hash())
}

func TestValidatorSetValidateBasic(t *testing.T) {
	val := types.NewValidator(factory.GenPrivKeys(1)[0].PubKey(), 10)

	testCases := []struct {
		name   string
		vals   *types.ValidatorSet
		errMsg string
	}{
		{"nil", nil, "nil or empty"},
		{"empty", &types.ValidatorSet{}, "nil or empty"},
		{"duplicate", &types.ValidatorSet{Validators: []*types.Validator{val, val}}, "duplicate"},
		{"zero power", types.NewValidatorSet([]*types.Validator{types.NewValidator(val.PubKey, 0)}), "zero total"},
		{"bad address", &types.ValidatorSet{Validators: []*types.Validator{{
			Address: []byte{1, 2, 3}, PubKey: val.PubKey, VotingPower: 1,
		}}}, "incorrectly derived"},
		{"ok", types.NewValidatorSet([]*types.Validator{val}), ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := tc.vals.ValidateBasic()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestVerifyCommitLight(t *testing.T) {
	keys := factory.GenPrivKeys(4)
	vals := keys.ToValidators(10, 0)

	testCases := []struct {
		name        string
		first, last int
		expErr      bool
	}{
		{"all signed", 0, 4, false},
		{"3 of 4 (more than 2/3)", 0, 3, false},
		{"2 of 4", 0, 2, true},
		{"none", 0, 0, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sh := keys.GenSignedHeader(t, chainID, 1, bTime, vals, vals, tc.first, tc.last)
			err := vals.VerifyCommitLight(chainID, sh.Commit.BlockID, sh.Height, sh.Commit)
			if tc.expErr {
				require.Error(t, err)
				assert.True(t, types.IsErrNotEnoughVotingPowerSigned(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestVerifyCommitLightRejectsBadSignature(t *testing.T) {
	keys := factory.GenPrivKeys(3)
	vals := keys.ToValidators(10, 0)
	sh := keys.GenSignedHeader(t, chainID, 1, bTime, vals, vals, 0, 3)

	sh.Commit.Signatures[0].Signature[0] ^= 0x01

	err := vals.VerifyCommitLight(chainID, sh.Commit.BlockID, sh.Height, sh.Commit)
	require.Error(t, err)
	assert.False(t, types.IsErrNotEnoughVotingPowerSigned(err))
	assert.Contains(t, err.Error(), "wrong signature")
}

func TestVerifyCommitLightTrustingThreshold(t *testing.T) {
	keys := factory.GenPrivKeys(3)
	vals := keys.ToValidators(10, 0)

	// one of three equal validators signs: exactly 1/3 of the power
	sh := keys.GenSignedHeader(t, chainID, 1, bTime, vals, vals, 0, 1)

	err := vals.VerifyCommitLightTrusting(chainID, sh.Commit, tmmath.Fraction{Numerator: 1, Denominator: 3})
	require.NoError(t, err, "exactly the trust level must be enough")

	err = vals.VerifyCommitLightTrusting(chainID, sh.Commit, tmmath.Fraction{Numerator: 1, Denominator: 2})
	require.Error(t, err)
	var notEnough types.ErrNotEnoughVotingPowerSigned
	require.True(t, errors.As(err, &notEnough))
	assert.EqualValues(t, 10, notEnough.Got)
	assert.EqualValues(t, 15, notEnough.Needed)
}

func TestVerifyCommitLightTrustingUnknownSigners(t *testing.T) {
	keys := factory.GenPrivKeys(3)
	vals := keys.ToValidators(10, 0)
	others := factory.GenPrivKeys(3)
	otherVals := others.ToValidators(10, 0)

	sh := others.GenSignedHeader(t, chainID, 1, bTime, otherVals, otherVals, 0, 3)

	err := vals.VerifyCommitLightTrusting(chainID, sh.Commit, tmmath.Fraction{Numerator: 1, Denominator: 3})
	require.Error(t, err)
	assert.True(t, types.IsErrNotEnoughVotingPowerSigned(err))
}

func TestVerifyCommitLightTrustingDoubleVote(t *testing.T) {
	keys := factory.GenPrivKeys(3)
	vals := keys.ToValidators(10, 0)
	sh := keys.GenSignedHeader(t, chainID, 1, bTime, vals, vals, 0, 1)

	// Find the signature and copy it over an absent slot.
	var signed types.CommitSig
	for _, cs := range sh.Commit.Signatures {
		if cs.ForBlock() {
			signed = cs
		}
	}
	for i, cs := range sh.Commit.Signatures {
		if cs.Absent() {
			sh.Commit.Signatures[i] = signed
			break
		}
	}

	err := vals.VerifyCommitLightTrusting(chainID, sh.Commit, tmmath.Fraction{Numerator: 2, Denominator: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "double vote")
}

func TestVerifyCommitLightTrustingOverflow(t *testing.T) {
	keys := factory.GenPrivKeys(3)
	vals := keys.ToValidators(10, 0)
	sh := keys.GenSignedHeader(t, chainID, 1, bTime, vals, vals, 0, 3)

	// ordinary numbers never overflow
	require.NoError(t, vals.VerifyCommitLightTrusting(chainID, sh.Commit, tmmath.Fraction{Numerator: 1, Denominator: 1}))

	err := vals.VerifyCommitLightTrusting(chainID, sh.Commit,
		tmmath.Fraction{Numerator: math.MaxInt64 / 2, Denominator: math.MaxInt64})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "int64 overflow")
	assert.False(t, types.IsErrNotEnoughVotingPowerSigned(err))
}
