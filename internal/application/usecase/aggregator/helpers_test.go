package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"derivagg/internal/application/port"
)

var errUpstream = errors.New("upstream 502")

// fakeSource is an in-memory DerivativesSource. Delays honour ctx the way the
// real client does.
type fakeSource struct {
	mu sync.Mutex

	premium      []port.PremiumIndex
	premiumErr   error
	premiumDelay time.Duration

	oi       map[string]string // symbol -> openInterest
	oiErr    map[string]error
	prices   map[string]string // symbol -> lastPrice
	ratios   map[string][]port.LongShortAccountRatio
	lsDelay  time.Duration
	lsErrAll error

	// gate, when set, blocks every call until closed or ctx is done.
	gate chan struct{}

	calls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		oi:     map[string]string{},
		oiErr:  map[string]error{},
		prices: map[string]string{},
		ratios: map[string][]port.LongShortAccountRatio{},
	}
}

func (f *fakeSource) Name() string { return "binance" }

func (f *fakeSource) wait(ctx context.Context, d time.Duration) error {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (f *fakeSource) PremiumIndex(ctx context.Context) ([]port.PremiumIndex, error) {
	if err := f.wait(ctx, f.premiumDelay); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.premiumErr != nil {
		return nil, f.premiumErr
	}
	return append([]port.PremiumIndex(nil), f.premium...), nil
}

func (f *fakeSource) OpenInterest(ctx context.Context, symbol string) (*port.OpenInterestStat, error) {
	if err := f.wait(ctx, 0); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.oiErr[symbol]; err != nil {
		return nil, err
	}
	v, ok := f.oi[symbol]
	if !ok {
		return nil, errUpstream
	}
	return &port.OpenInterestStat{Symbol: symbol, OpenInterest: v}, nil
}

func (f *fakeSource) Ticker24h(ctx context.Context, symbol string) (*port.Ticker24h, error) {
	if err := f.wait(ctx, 0); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.prices[symbol]
	if !ok {
		return nil, errUpstream
	}
	return &port.Ticker24h{Symbol: symbol, LastPrice: v}, nil
}

func (f *fakeSource) GlobalLongShortAccountRatio(ctx context.Context, symbol, period string, limit int) ([]port.LongShortAccountRatio, error) {
	if err := f.wait(ctx, f.lsDelay); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lsErrAll != nil {
		return nil, f.lsErrAll
	}
	return f.ratios[symbol], nil
}

// btcEthSource is the BTC/ETH scenario with every domain healthy.
func btcEthSource() *fakeSource {
	src := newFakeSource()
	src.premium = []port.PremiumIndex{
		{Symbol: "BTCUSDT", LastFundingRate: "0.0002", NextFundingTime: 1700000000000},
		{Symbol: "ETHUSDT", LastFundingRate: "-0.0015", NextFundingTime: 1700000000000},
		{Symbol: "PEPEUSDT", LastFundingRate: "0.01", NextFundingTime: 1700000000000},
	}
	src.oi["BTCUSDT"] = "100"
	src.prices["BTCUSDT"] = "60000"
	src.oi["ETHUSDT"] = "1000"
	src.prices["ETHUSDT"] = "3000"
	src.ratios["BTCUSDT"] = []port.LongShortAccountRatio{{Symbol: "BTCUSDT", LongAccount: "0.55", ShortAccount: "0.45"}}
	src.ratios["ETHUSDT"] = []port.LongShortAccountRatio{{Symbol: "ETHUSDT", LongAccount: "0.61", ShortAccount: "0.40"}}
	return src
}

// recorder collects emitted events in order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
