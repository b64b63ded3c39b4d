package domain

import "github.com/shopspring/decimal"

// TollPoint identifies a fixed toll-collection location.
type TollPoint string

const (
	TollPointZoneA TollPoint = "ZONE_A"
	TollPointZoneB TollPoint = "ZONE_B"
	TollPointZoneC TollPoint = "ZONE_C"
	TollPointZoneD TollPoint = "ZONE_D"
)

// baseRates is the per-toll-point tariff in the deployment currency.
var baseRates = map[TollPoint]decimal.Decimal{
	TollPointZoneA: decimal.RequireFromString("25.00"),
	TollPointZoneB: decimal.RequireFromString("30.00"),
	TollPointZoneC: decimal.RequireFromString("20.00"),
	TollPointZoneD: decimal.RequireFromString("35.00"),
}

// lowestBaseRate is applied to toll points missing from the table.
var lowestBaseRate = decimal.RequireFromString("20.00")

// TollPoints lists the enumerated toll points in a stable order.
func TollPoints() []TollPoint {
	return []TollPoint{TollPointZoneA, TollPointZoneB, TollPointZoneC, TollPointZoneD}
}

// ParseTollPoint returns the toll point for id and whether it is enumerated.
func ParseTollPoint(id string) (TollPoint, bool) {
	tp := TollPoint(id)
	_, ok := baseRates[tp]
	return tp, ok
}

// BaseRate returns the tariff for the toll point.
func (t TollPoint) BaseRate() decimal.Decimal {
	if rate, ok := baseRates[t]; ok {
		return rate
	}
	return lowestBaseRate
}
