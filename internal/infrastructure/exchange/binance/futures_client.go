package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"derivagg/internal/application/port"
)

const (
	DefaultFuturesURL = "https://fapi.binance.com"

	defaultTimeout = 10 * time.Second
	defaultRPS     = 20
	defaultBurst   = 20
)

// ClientOptions Binance U 本位合约 REST 客户端配置
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second shared by all calls
	Burst     int
	HTTP      *http.Client
}

// FuturesClient Binance 合约公共行情 REST 客户端
type FuturesClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewFuturesClient 创建合约行情客户端
func NewFuturesClient(opts ClientOptions) *FuturesClient {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultFuturesURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := opts.RateLimit
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &FuturesClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *FuturesClient) Name() string { return "binance" }

// PremiumIndex 获取全部合约的资金费率与下次结算时间
func (c *FuturesClient) PremiumIndex(ctx context.Context) ([]port.PremiumIndex, error) {
	var out []port.PremiumIndex
	if err := c.getJSON(ctx, "/fapi/v1/premiumIndex", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenInterest 获取单个合约的当前持仓量
func (c *FuturesClient) OpenInterest(ctx context.Context, symbol string) (*port.OpenInterestStat, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var out port.OpenInterestStat
	if err := c.getJSON(ctx, "/fapi/v1/openInterest", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ticker24h 获取单个合约 24h 行情
func (c *FuturesClient) Ticker24h(ctx context.Context, symbol string) (*port.Ticker24h, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var out port.Ticker24h
	if err := c.getJSON(ctx, "/fapi/v1/ticker/24hr", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GlobalLongShortAccountRatio 获取多空账户比，最新的在最后
func (c *FuturesClient) GlobalLongShortAccountRatio(ctx context.Context, symbol, period string, limit int) ([]port.LongShortAccountRatio, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("period", period)
	params.Set("limit", strconv.Itoa(limit))

	var out []port.LongShortAccountRatio
	if err := c.getJSON(ctx, "/futures/data/globalLongShortAccountRatio", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ port.DerivativesSource = (*FuturesClient)(nil)
