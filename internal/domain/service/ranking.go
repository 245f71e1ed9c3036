package service

import (
	"cmp"
	"math"
	"slices"

	"derivagg/internal/domain/model"
)

// SortFundingByPressure orders rates by descending absolute value so the most
// extreme funding surfaces first. Ties keep their input order.
func SortFundingByPressure(rates []model.FundingRate) {
	slices.SortStableFunc(rates, func(a, b model.FundingRate) int {
		return cmp.Compare(math.Abs(b.Rate), math.Abs(a.Rate))
	})
}

// SortOpenInterestByUSD orders by descending USD open interest.
func SortOpenInterestByUSD(items []model.OpenInterest) {
	slices.SortStableFunc(items, func(a, b model.OpenInterest) int {
		return cmp.Compare(b.OpenInterestUSD, a.OpenInterestUSD)
	})
}

// FundingColor -1 red (shorts pay), 0 neutral, +1 green (longs pay)
func FundingColor(rate, threshold float64) int {
	if rate >= threshold {
		return +1
	}
	if rate <= -threshold {
		return -1
	}
	return 0
}
