package model

// ========== Derivatives Models ==========

// Domain 数据域（资金费率 / 持仓量 / 多空比）
type Domain int

const (
	DomainFunding Domain = iota
	DomainOpenInterest
	DomainLongShort
)

func (d Domain) String() string {
	switch d {
	case DomainFunding:
		return "funding"
	case DomainOpenInterest:
		return "open_interest"
	case DomainLongShort:
		return "long_short"
	default:
		return "unknown"
	}
}

// FundingRate 永续合约资金费率
type FundingRate struct {
	Symbol          string  `json:"symbol"`            // 币种, 例: BTC
	Rate            float64 `json:"rate"`              // 0.0001 = 0.01%
	NextFundingTime int64   `json:"next_funding_time"` // 下次结算时间（毫秒）
	Exchange        string  `json:"exchange"`
}

// OpenInterest 持仓量（USD 计价）
type OpenInterest struct {
	Symbol          string  `json:"symbol"`
	OpenInterestUSD float64 `json:"open_interest_usd"`
	// Change24hPct is always zero: the upstream call carries no prior-period value.
	Change24hPct float64 `json:"change_24h_pct"`
}

// LongShortRatio 多空账户比
// LongFraction + ShortFraction is close to 1 but the two are sourced independently.
type LongShortRatio struct {
	Symbol        string  `json:"symbol"`
	LongFraction  float64 `json:"long_fraction"`
	ShortFraction float64 `json:"short_fraction"`
}

// AggregateSnapshot is the complete public state of the aggregator.
// A snapshot is never mutated after publication; every transition builds a new one.
type AggregateSnapshot struct {
	Funding      []FundingRate    `json:"funding"`
	OpenInterest []OpenInterest   `json:"open_interest"`
	LongShort    []LongShortRatio `json:"long_short"`
	IsLoading    bool             `json:"is_loading"`
	LastRefresh  int64            `json:"last_refresh_ts_ms"` // 0 = never refreshed
	LastError    string           `json:"last_error,omitempty"`
}

// InitialSnapshot 激活时的初始状态
func InitialSnapshot() AggregateSnapshot {
	return AggregateSnapshot{
		Funding:      []FundingRate{},
		OpenInterest: []OpenInterest{},
		LongShort:    []LongShortRatio{},
		IsLoading:    true,
	}
}
