package payments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitTenDollarLesson(t *testing.T) {
	// 1000c gross, 15% platform, 2.9% + 30c processor:
	// processorFee = round(29.0) + 30 = 59
	// basePlatformFee = round(150.0) = 150
	// platformShare = round(59*150/1000) = round(8.85) = 9
	split, err := DefaultPolicy().Split(1000)
	require.NoError(t, err)
	require.Equal(t, int64(159), split.PlatformFeeCents)
	require.Equal(t, int64(841), split.InstructorPayoutCents)
}

func TestSplitZeroAmount(t *testing.T) {
	split, err := DefaultPolicy().Split(0)
	require.NoError(t, err)
	require.Equal(t, int64(0), split.PlatformFeeCents)
	require.Equal(t, int64(0), split.InstructorPayoutCents)
}

func TestSplitNegativeAmount(t *testing.T) {
	_, err := DefaultPolicy().Split(-100)
	require.ErrorIs(t, err, ErrNegativeAmount)

	_, err = DefaultPolicy().SplitWithBase(1000, -1)
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSplitIdentityHoldsAcrossAmounts(t *testing.T) {
	policy := DefaultPolicy()
	amounts := []int64{1, 2, 3, 29, 30, 31, 50, 99, 100, 101, 499, 500, 999,
		1000, 1234, 9999, 10000, 123456, 999999}
	for _, gross := range amounts {
		split, err := policy.Split(gross)
		require.NoError(t, err)
		require.Equal(t, gross, split.PlatformFeeCents+split.InstructorPayoutCents,
			"identity violated for gross=%d", gross)
		require.GreaterOrEqual(t, split.InstructorPayoutCents, int64(0))
		require.GreaterOrEqual(t, split.PlatformFeeCents, int64(0))
	}
}

func TestSplitClampsTinyAmounts(t *testing.T) {
	// For a 1c charge the fixed processor fee alone exceeds the gross; the
	// platform fee clamps to gross and the payout floors at zero.
	split, err := DefaultPolicy().Split(1)
	require.NoError(t, err)
	require.Equal(t, split.PlatformFeeCents+split.InstructorPayoutCents, int64(1))
	require.GreaterOrEqual(t, split.InstructorPayoutCents, int64(0))
}

func TestSplitIsDeterministic(t *testing.T) {
	policy := DefaultPolicy()
	first, err := policy.Split(4321)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := policy.Split(4321)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestGrossUp(t *testing.T) {
	policy := DefaultPolicy()

	gross, err := policy.GrossUp(1000)
	require.NoError(t, err)
	// (1000+30)/(1-0.029) = 1060.76... -> 1061
	require.Equal(t, int64(1061), gross)

	gross, err = policy.GrossUp(0)
	require.NoError(t, err)
	require.Equal(t, int64(0), gross)

	_, err = policy.GrossUp(-5)
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSplitWithBasePassThrough(t *testing.T) {
	policy := DefaultPolicy()
	base := int64(1000)
	gross, err := policy.GrossUp(base)
	require.NoError(t, err)

	split, err := policy.SplitWithBase(gross, base)
	require.NoError(t, err)
	// Identity holds on the grossed-up amount.
	require.Equal(t, gross, split.PlatformFeeCents+split.InstructorPayoutCents)
	// Platform percentage still applies to the base price, not the gross.
	// processorFee = round(1061*0.029)+30 = 31+30 = 61
	// basePlatformFee = 150; share = round(61*150/1061) = round(8.62) = 9
	require.Equal(t, int64(159), split.PlatformFeeCents)
	require.Equal(t, gross-159, split.InstructorPayoutCents)
}
