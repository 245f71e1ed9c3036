package service

import (
	"testing"

	"derivagg/internal/domain/model"
)

func TestSortFundingByPressure(t *testing.T) {
	rates := []model.FundingRate{
		{Symbol: "BTC", Rate: 0.0001},
		{Symbol: "ETH", Rate: -0.0009},
		{Symbol: "SOL", Rate: 0.0003},
	}
	SortFundingByPressure(rates)

	want := []float64{-0.0009, 0.0003, 0.0001}
	for i, w := range want {
		if rates[i].Rate != w {
			t.Fatalf("position %d: expected %v, got %v", i, w, rates[i].Rate)
		}
	}
}

func TestSortFundingByPressureStableOnTies(t *testing.T) {
	rates := []model.FundingRate{
		{Symbol: "BTC", Rate: 0.0002},
		{Symbol: "ETH", Rate: -0.0002},
	}
	SortFundingByPressure(rates)
	if rates[0].Symbol != "BTC" || rates[1].Symbol != "ETH" {
		t.Errorf("expected input order on ties, got %s, %s", rates[0].Symbol, rates[1].Symbol)
	}
}

func TestSortOpenInterestByUSD(t *testing.T) {
	items := []model.OpenInterest{
		{Symbol: "ETH", OpenInterestUSD: 5e9},
		{Symbol: "BTC", OpenInterestUSD: 9e9},
		{Symbol: "SOL", OpenInterestUSD: 1e9},
	}
	SortOpenInterestByUSD(items)
	if items[0].Symbol != "BTC" || items[1].Symbol != "ETH" || items[2].Symbol != "SOL" {
		t.Errorf("unexpected order: %+v", items)
	}
}

func TestFundingColor(t *testing.T) {
	cases := []struct {
		rate float64
		want int
	}{
		{0.0005, +1},
		{-0.0005, -1},
		{0.00001, 0},
	}
	for _, c := range cases {
		if got := FundingColor(c.rate, 0.0001); got != c.want {
			t.Errorf("FundingColor(%v) = %d, want %d", c.rate, got, c.want)
		}
	}
}
