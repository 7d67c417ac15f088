package light_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/lightnode/internal/test/factory"
	tmmath "github.com/tendermint/lightnode/libs/math"
	"github.com/tendermint/lightnode/light"
	"github.com/tendermint/lightnode/types"
)

func TestVerifyAdjacentHeaders(t *testing.T) {
	var (
		keys = factory.GenPrivKeys(4)
		// 20, 30, 40, 50 - the first 3 don't have 2/3, the last 3 do!
		vals    = keys.ToValidators(20, 10)
		trusted = keys.GenLightBlock(t, chainID, 1, bTime, vals, vals, 0, len(keys))
		now     = bTime.Add(2 * time.Hour)

		newKeys = factory.GenPrivKeys(4)
		newVals = newKeys.ToValidators(10, 1)
	)

	testCases := []struct {
		name      string
		untrusted *types.LightBlock
		now       time.Time
		check     func(t *testing.T, err error)
	}{
		{
			"good",
			keys.GenLightBlock(t, chainID, 2, bTime.Add(time.Hour), vals, vals, 0, len(keys)),
			now,
			nil,
		},
		{
			"3/3 signed by the heaviest validators",
			keys.GenLightBlock(t, chainID, 2, bTime.Add(time.Hour), vals, vals, 1, len(keys)),
			now,
			nil,
		},
		{
			"less than 2/3 signed",
			keys.GenLightBlock(t, chainID, 2, bTime.Add(time.Hour), vals, vals, 0, 3),
			now,
			func(t *testing.T, err error) {
				var e light.ErrInvalidCommit
				require.ErrorAs(t, err, &e)
				assert.True(t, types.IsErrNotEnoughVotingPowerSigned(e.Reason))
			},
		},
		{
			"validators do not match the trusted next validators",
			newKeys.GenLightBlock(t, chainID, 2, bTime.Add(time.Hour), newVals, newVals, 0, len(newKeys)),
			now,
			func(t *testing.T, err error) {
				var e light.ErrInvalidAdjacentHeaders
				require.ErrorAs(t, err, &e)
				assert.EqualValues(t, vals.Hash(), e.Expected)
				assert.EqualValues(t, newVals.Hash(), e.Got)
			},
		},
		{
			"header from another chain",
			keys.GenLightBlock(t, "other-chain", 2, bTime.Add(time.Hour), vals, vals, 0, len(keys)),
			now,
			func(t *testing.T, err error) {
				require.ErrorAs(t, err, &light.ErrInvalidHeader{})
			},
		},
		{
			"header time equal to the trusted one",
			keys.GenLightBlock(t, chainID, 2, bTime, vals, vals, 0, len(keys)),
			now,
			func(t *testing.T, err error) {
				var e light.ErrNonMonotonicTime
				require.ErrorAs(t, err, &e)
				assert.True(t, e.Got.Equal(bTime))
			},
		},
		{
			"header from the future",
			keys.GenLightBlock(t, chainID, 2, now.Add(time.Hour), vals, vals, 0, len(keys)),
			now,
			func(t *testing.T, err error) {
				var e light.ErrHeaderFromFuture
				require.ErrorAs(t, err, &e)
				assert.Equal(t, light.DefaultMaxClockDrift, e.MaxClockDrift)
			},
		},
		{
			"header within the clock drift",
			keys.GenLightBlock(t, chainID, 2, now.Add(light.DefaultMaxClockDrift/2), vals, vals, 0, len(keys)),
			now,
			nil,
		},
		{
			"trusted header expired",
			keys.GenLightBlock(t, chainID, 2, bTime.Add(time.Hour), vals, vals, 0, len(keys)),
			bTime.Add(trustingPeriod),
			func(t *testing.T, err error) {
				var e light.ErrOldHeaderExpired
				require.ErrorAs(t, err, &e)
				assert.True(t, e.At.Equal(bTime.Add(trustingPeriod)))
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			lb, err := light.NewVerifier().Validate(tc.untrusted, trusted, testOptions(tc.now))
			if tc.check == nil {
				require.NoError(t, err)
				assert.Same(t, tc.untrusted, lb)
				return
			}
			require.Error(t, err)
			assert.Nil(t, lb)
			tc.check(t, err)
		})
	}
}

func TestVerifyNonAdjacentHeaders(t *testing.T) {
	var (
		keys    = factory.GenPrivKeys(4)
		vals    = keys.ToValidators(10, 0)
		trusted = keys.GenLightBlock(t, chainID, 1, bTime, vals, vals, 0, len(keys))
		now     = bTime.Add(2 * time.Hour)

		// 2 of the 4 trusted validators remain.
		halfKeys = keys.ChangeKeys(2)
		halfVals = halfKeys.ToValidators(10, 0)
		// 1 of the 4 trusted validators remains.
		quarterKeys = keys.ChangeKeys(3)
		quarterVals = quarterKeys.ToValidators(10, 0)
	)

	testCases := []struct {
		name      string
		untrusted *types.LightBlock
		check     func(t *testing.T, err error)
	}{
		{
			"same validators",
			keys.GenLightBlock(t, chainID, 3, bTime.Add(time.Hour), vals, vals, 0, len(keys)),
			nil,
		},
		{
			"half of the trusted validators signed",
			halfKeys.GenLightBlock(t, chainID, 5, bTime.Add(time.Hour), halfVals, halfVals, 0, len(halfKeys)),
			nil,
		},
		{
			"a quarter of the trusted validators signed",
			quarterKeys.GenLightBlock(t, chainID, 5, bTime.Add(time.Hour), quarterVals, quarterVals, 0, len(quarterKeys)),
			func(t *testing.T, err error) {
				var e light.ErrNewValSetCantBeTrusted
				require.ErrorAs(t, err, &e)
				assert.EqualValues(t, 10, e.Reason.Got)
				assert.EqualValues(t, 14, e.Reason.Needed)
			},
		},
		{
			"less than 2/3 of own validators signed",
			keys.GenLightBlock(t, chainID, 3, bTime.Add(time.Hour), vals, vals, 0, 2),
			func(t *testing.T, err error) {
				var e light.ErrInvalidCommit
				require.ErrorAs(t, err, &e)
			},
		},
		{
			"height below the trusted height",
			keys.GenLightBlock(t, chainID, 1, bTime.Add(time.Hour), vals, vals, 0, len(keys)),
			func(t *testing.T, err error) {
				var e light.ErrNonIncreasingHeight
				require.ErrorAs(t, err, &e)
				assert.EqualValues(t, 1, e.Got)
				assert.EqualValues(t, 1, e.Trusted)
			},
		},
		{
			"validator set does not match the header",
			func() *types.LightBlock {
				lb := keys.GenLightBlock(t, chainID, 3, bTime.Add(time.Hour), vals, vals, 0, len(keys))
				lb.ValidatorSet = halfVals
				return lb
			}(),
			func(t *testing.T, err error) {
				var e light.ErrValidatorSetMismatch
				require.ErrorAs(t, err, &e)
				assert.False(t, e.Next)
				assert.EqualValues(t, 3, e.Height)
				assert.EqualValues(t, vals.Hash(), e.Declared)
				assert.EqualValues(t, halfVals.Hash(), e.Computed)
			},
		},
		{
			"next validator set does not match the header",
			func() *types.LightBlock {
				lb := keys.GenLightBlock(t, chainID, 3, bTime.Add(time.Hour), vals, vals, 0, len(keys))
				lb.NextValidatorSet = halfVals
				return lb
			}(),
			func(t *testing.T, err error) {
				var e light.ErrValidatorSetMismatch
				require.ErrorAs(t, err, &e)
				assert.True(t, e.Next)
			},
		},
		{
			"missing commit",
			func() *types.LightBlock {
				lb := keys.GenLightBlock(t, chainID, 3, bTime.Add(time.Hour), vals, vals, 0, len(keys))
				lb.SignedHeader = &types.SignedHeader{Header: lb.Header}
				return lb
			}(),
			func(t *testing.T, err error) {
				require.ErrorAs(t, err, &light.ErrInvalidHeader{})
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			lb, err := light.NewVerifier().Validate(tc.untrusted, trusted, testOptions(now))
			if tc.check == nil {
				require.NoError(t, err)
				assert.Same(t, tc.untrusted, lb)
				return
			}
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestVerifyOverlapExactlyAtThreshold(t *testing.T) {
	keys := factory.GenPrivKeys(3)
	vals := keys.ToValidators(10, 0)
	trusted := keys.GenLightBlock(t, chainID, 1, bTime, vals, vals, 0, len(keys))

	// 1 of the 3 trusted validators (10 of 30) signs the new header.
	newKeys := keys.ChangeKeys(2)
	newVals := newKeys.ToValidators(10, 0)
	untrusted := newKeys.GenLightBlock(t, chainID, 10, bTime.Add(time.Hour), newVals, newVals, 0, len(newKeys))

	opts := testOptions(bTime.Add(2 * time.Hour))
	_, err := light.NewVerifier().Validate(untrusted, trusted, opts)
	require.NoError(t, err)

	opts.TrustThreshold = tmmath.Fraction{Numerator: 1, Denominator: 2}
	_, err = light.NewVerifier().Validate(untrusted, trusted, opts)
	var e light.ErrNewValSetCantBeTrusted
	require.ErrorAs(t, err, &e)
	assert.EqualValues(t, 10, e.Reason.Got)
	assert.EqualValues(t, 15, e.Reason.Needed)
}

func TestVerifyExpiredRegardlessOfCommit(t *testing.T) {
	keys := factory.GenPrivKeys(4)
	vals := keys.ToValidators(10, 0)
	trusted := keys.GenLightBlock(t, chainID, 1, bTime, vals, vals, 0, len(keys))

	// unsigned and inconsistent
	untrusted := keys.GenLightBlock(t, chainID, 3, bTime.Add(time.Hour), vals, vals, 0, 0)
	untrusted.ValidatorSet = nil

	_, err := light.NewVerifier().Validate(untrusted, trusted, testOptions(bTime.Add(trustingPeriod+time.Second)))
	require.ErrorAs(t, err, &light.ErrOldHeaderExpired{})
}

func TestVerifierClock(t *testing.T) {
	keys := factory.GenPrivKeys(4)
	vals := keys.ToValidators(10, 0)
	trusted := keys.GenLightBlock(t, chainID, 1, bTime, vals, vals, 0, len(keys))
	untrusted := keys.GenLightBlock(t, chainID, 2, bTime.Add(time.Hour), vals, vals, 0, len(keys))

	opts := light.DefaultVerificationOptions(trustingPeriod)

	// The clock is used only when Now is zero.
	v := light.NewVerifier(light.VerifierClock(func() time.Time { return bTime.Add(trustingPeriod) }))
	_, err := v.Validate(untrusted, trusted, opts)
	require.ErrorAs(t, err, &light.ErrOldHeaderExpired{})

	opts.Now = bTime.Add(2 * time.Hour)
	_, err = v.Validate(untrusted, trusted, opts)
	require.NoError(t, err)
}

func TestValidateTrustLevel(t *testing.T) {
	testCases := []struct {
		lvl   tmmath.Fraction
		valid bool
	}{
		// valid
		0: {tmmath.Fraction{Numerator: 1, Denominator: 1}, true},
		1: {tmmath.Fraction{Numerator: 1, Denominator: 3}, true},
		2: {tmmath.Fraction{Numerator: 2, Denominator: 3}, true},
		3: {tmmath.Fraction{Numerator: 3, Denominator: 3}, true},
		4: {tmmath.Fraction{Numerator: 4, Denominator: 5}, true},

		// invalid
		5: {tmmath.Fraction{Numerator: 6, Denominator: 5}, false},
		6: {tmmath.Fraction{Numerator: 0, Denominator: 1}, false},
		7: {tmmath.Fraction{Numerator: 0, Denominator: 0}, false},
		8: {tmmath.Fraction{Numerator: 1, Denominator: 0}, false},
		9: {tmmath.Fraction{Numerator: 1, Denominator: 4}, false},
	}

	for i, tc := range testCases {
		err := light.ValidateTrustLevel(tc.lvl)
		if !tc.valid {
			assert.Error(t, err, "#%d", i)
		} else {
			assert.NoError(t, err, "#%d", i)
		}
	}
}

func TestVerificationOptionsValidateBasic(t *testing.T) {
	testCases := []struct {
		name     string
		malleate func(*light.VerificationOptions)
		valid    bool
	}{
		{"default", func(*light.VerificationOptions) {}, true},
		{"zero trusting period", func(o *light.VerificationOptions) { o.TrustingPeriod = 0 }, false},
		{"negative clock drift", func(o *light.VerificationOptions) { o.MaxClockDrift = -time.Second }, false},
		{"zero clock drift", func(o *light.VerificationOptions) { o.MaxClockDrift = 0 }, true},
		{"trust level too low", func(o *light.VerificationOptions) {
			o.TrustThreshold = tmmath.Fraction{Numerator: 1, Denominator: 5}
		}, false},
		{"trust level of one", func(o *light.VerificationOptions) {
			o.TrustThreshold = tmmath.Fraction{Numerator: 1, Denominator: 1}
		}, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			opts := light.DefaultVerificationOptions(trustingPeriod)
			tc.malleate(&opts)
			if tc.valid {
				assert.NoError(t, opts.ValidateBasic())
			} else {
				assert.Error(t, opts.ValidateBasic())
			}
		})
	}
}

func TestHeaderExpired(t *testing.T) {
	sh := &types.SignedHeader{Header: &types.Header{Time: bTime}}

	assert.False(t, light.HeaderExpired(sh, time.Hour, bTime.Add(59*time.Minute)))
	assert.True(t, light.HeaderExpired(sh, time.Hour, bTime.Add(time.Hour)))
	assert.True(t, light.HeaderExpired(sh, time.Hour, bTime.Add(2*time.Hour)))
}
