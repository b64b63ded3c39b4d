package service

import (
	"tollway/internal/core/domain"

	"github.com/shopspring/decimal"
)

var (
	unregisteredSurcharge = decimal.RequireFromString("1.5")
	unregisteredPenalty   = decimal.RequireFromString("15.00")
	tagDiscount           = decimal.RequireFromString("0.9")
)

// FeeCalculatorImpl implements ports.FeeCalculator. It holds no state.
type FeeCalculatorImpl struct{}

// NewFeeCalculator creates a fee calculator.
func NewFeeCalculator() *FeeCalculatorImpl {
	return &FeeCalculatorImpl{}
}

// Calculate returns the amount owed for one crossing, rounded half-up to cents.
//
//	unregistered:        base * 1.5 + 15.00
//	registered, tag:     base * 0.9
//	registered, no tag:  base
func (c *FeeCalculatorImpl) Calculate(tollPoint domain.TollPoint, classification domain.Classification, hasActiveTag bool) decimal.Decimal {
	base := tollPoint.BaseRate()

	switch {
	case classification != domain.ClassificationRegistered:
		return round2(base.Mul(unregisteredSurcharge).Add(unregisteredPenalty))
	case hasActiveTag:
		return round2(base.Mul(tagDiscount))
	default:
		return round2(base)
	}
}

// round2 rounds half away from zero, which is half-up for non-negative amounts.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
