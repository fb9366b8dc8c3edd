package payments

import (
	"errors"
	"math"
)

// Default fee policy: 15% platform fee, Stripe's 2.9% + 30c processing fee.
const (
	DefaultPlatformFeePercent     = 15.0
	DefaultProcessorPercentFee    = 2.9
	DefaultProcessorFixedFeeCents = 30
)

// ErrNegativeAmount is returned when a charge amount is below zero.
var ErrNegativeAmount = errors.New("amount must not be negative")

// Policy is the marketplace fee policy. The platform keeps its configured
// percentage of the base sale price and absorbs its proportional share of
// the processor's deduction; the instructor gets the remainder.
type Policy struct {
	PlatformFeePercent     float64
	ProcessorPercentFee    float64
	ProcessorFixedFeeCents int64
}

// DefaultPolicy returns the standard fee policy.
func DefaultPolicy() Policy {
	return Policy{
		PlatformFeePercent:     DefaultPlatformFeePercent,
		ProcessorPercentFee:    DefaultProcessorPercentFee,
		ProcessorFixedFeeCents: DefaultProcessorFixedFeeCents,
	}
}

// FeeSplit is the result of applying the policy to a gross charge amount.
// Invariant: PlatformFeeCents + InstructorPayoutCents == gross, exactly.
type FeeSplit struct {
	PlatformFeeCents      int64 `json:"platform_fee_cents"`
	InstructorPayoutCents int64 `json:"instructor_payout_cents"`
}

// Split computes the fee split for a charge where the buyer pays the base
// sale price directly (no processor-fee pass-through).
func (p Policy) Split(grossCents int64) (FeeSplit, error) {
	return p.SplitWithBase(grossCents, grossCents)
}

// SplitWithBase computes the fee split for a gross charge where baseCents is
// the pre-pass-through sale price. The platform percentage applies to the
// base price; the platform's share of the processor fee is proportional to
// that base fee relative to the gross amount. The instructor payout is
// always the subtraction remainder, so no cent is lost to rounding.
func (p Policy) SplitWithBase(grossCents, baseCents int64) (FeeSplit, error) {
	if grossCents < 0 || baseCents < 0 {
		return FeeSplit{}, ErrNegativeAmount
	}
	if grossCents == 0 {
		return FeeSplit{}, nil
	}

	processorFee := roundCents(float64(grossCents)*p.ProcessorPercentFee/100) + p.ProcessorFixedFeeCents
	basePlatformFee := roundCents(float64(baseCents) * p.PlatformFeePercent / 100)
	platformShareOfProcessorFee := roundCents(float64(processorFee) * float64(basePlatformFee) / float64(grossCents))

	platformFee := basePlatformFee + platformShareOfProcessorFee
	// Should not happen for realistic prices; keeps the payout floor at 0.
	if platformFee > grossCents {
		platformFee = grossCents
	}
	return FeeSplit{
		PlatformFeeCents:      platformFee,
		InstructorPayoutCents: grossCents - platformFee,
	}, nil
}

// GrossUp returns the amount to charge the buyer so that the base sale price
// survives the processor's percentage-plus-fixed deduction (inverse of the
// processor fee applied in Split). Used when the processor fee is passed
// through to the buyer instead of absorbed from the sale price.
func (p Policy) GrossUp(baseCents int64) (int64, error) {
	if baseCents < 0 {
		return 0, ErrNegativeAmount
	}
	if baseCents == 0 {
		return 0, nil
	}
	denom := 1 - p.ProcessorPercentFee/100
	return roundCents(float64(baseCents+p.ProcessorFixedFeeCents) / denom), nil
}

// roundCents rounds half away from zero, matching every intermediate
// division in the split computation.
func roundCents(f float64) int64 {
	return int64(math.Round(f))
}
