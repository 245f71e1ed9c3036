package port

import "context"

// PremiumIndex 资金费率 / 标记价格（原始字段，字符串数值）
type PremiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// OpenInterestStat 合约持仓量（张/币数量）
type OpenInterestStat struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
	Time         int64  `json:"time"`
}

// Ticker24h 24 小时行情，只保留需要的字段
type Ticker24h struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

// LongShortAccountRatio 全市场多空账户比
type LongShortAccountRatio struct {
	Symbol         string `json:"symbol"`
	LongAccount    string `json:"longAccount"`
	ShortAccount   string `json:"shortAccount"`
	LongShortRatio string `json:"longShortRatio"`
	Timestamp      int64  `json:"timestamp"`
}

// DerivativesSource is the upstream surface the fetchers consume.
// Every call must observe ctx and return promptly once it is cancelled.
type DerivativesSource interface {
	Name() string
	PremiumIndex(ctx context.Context) ([]PremiumIndex, error)
	OpenInterest(ctx context.Context, symbol string) (*OpenInterestStat, error)
	Ticker24h(ctx context.Context, symbol string) (*Ticker24h, error)
	GlobalLongShortAccountRatio(ctx context.Context, symbol, period string, limit int) ([]LongShortAccountRatio, error)
}
