package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"derivagg/internal/application/port"
	"derivagg/internal/domain/model"
	dsvc "derivagg/internal/domain/service"
	"derivagg/internal/infrastructure/exchange"
)

// Status 单个 fetcher 的结果类型
type Status int

const (
	StatusNoUpdate Status = iota
	StatusUpdated
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusUpdated:
		return "updated"
	case StatusCancelled:
		return "cancelled"
	default:
		return "no_update"
	}
}

// Result is what every fetcher returns instead of an error. Items is the
// complete list for the domain when Status is StatusUpdated and nil otherwise.
type Result[T any] struct {
	Items  []T
	Status Status
	Err    error
}

func updated[T any](items []T) Result[T] {
	return Result[T]{Items: items, Status: StatusUpdated}
}

func noUpdate[T any](err error) Result[T] {
	return Result[T]{Status: StatusNoUpdate, Err: err}
}

func cancelled[T any]() Result[T] {
	return Result[T]{Status: StatusCancelled}
}

// Fetchers normalizes upstream responses into domain records.
type Fetchers struct {
	src       port.DerivativesSource
	symbols   []string
	symbolCap int
	conv      exchange.SymbolConverter
}

// NewFetchers uses TrackedSymbols when symbols is empty. Entries may be coins
// ("btc") or pairs ("BTCUSDT"); both are normalized to upper-case pairs.
func NewFetchers(src port.DerivativesSource, symbols []string) *Fetchers {
	if len(symbols) == 0 {
		symbols = TrackedSymbols
	}
	conv := exchange.NewCommonSymbolConverter(exchange.QuoteUSDT)

	pairs := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if p := conv.Coin2Symbol(s); p != "" && !slices.Contains(pairs, p) {
			pairs = append(pairs, p)
		}
	}
	return &Fetchers{
		src:       src,
		symbols:   pairs,
		symbolCap: SymbolCap,
		conv:      conv,
	}
}

// parseFinite 解析上游数值字符串；NaN 和 ±Inf 视为格式错误
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func (f *Fetchers) capped() []string {
	if len(f.symbols) > f.symbolCap {
		return f.symbols[:f.symbolCap]
	}
	return f.symbols
}

// Funding 资金费率：一次请求，按白名单过滤，按 |rate| 降序
func (f *Fetchers) Funding(ctx context.Context) Result[model.FundingRate] {
	all, err := f.src.PremiumIndex(ctx)
	if ctx.Err() != nil {
		return cancelled[model.FundingRate]()
	}
	if err != nil {
		return noUpdate[model.FundingRate](err)
	}

	tracked := make(map[string]struct{}, len(f.symbols))
	for _, s := range f.symbols {
		tracked[strings.ToUpper(s)] = struct{}{}
	}

	out := make([]model.FundingRate, 0, len(f.symbols))
	for _, p := range all {
		sym := strings.ToUpper(p.Symbol)
		if _, ok := tracked[sym]; !ok {
			continue
		}
		r, err := parseFinite(p.LastFundingRate)
		if err != nil {
			log.Debug().Str("symbol", sym).Str("rate", p.LastFundingRate).Msg("skip unparsable funding rate")
			continue
		}
		out = append(out, model.FundingRate{
			Symbol:          f.conv.Symbol2Coin(sym),
			Rate:            r,
			NextFundingTime: p.NextFundingTime,
			Exchange:        f.src.Name(),
		})
	}
	dsvc.SortFundingByPressure(out)
	return updated(out)
}

// OpenInterest 持仓量：每个币种独立失败域，openInterest × lastPrice 得到 USD
func (f *Fetchers) OpenInterest(ctx context.Context) Result[model.OpenInterest] {
	symbols := f.capped()

	var (
		mu      sync.Mutex
		out     = make([]model.OpenInterest, 0, len(symbols))
		lastErr error
	)

	var g errgroup.Group
	g.SetLimit(f.symbolCap)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			item, err := f.openInterestFor(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				if ctx.Err() == nil {
					log.Debug().Err(err).Str("symbol", sym).Msg("open interest fetch failed")
				}
				return nil
			}
			out = append(out, item)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return cancelled[model.OpenInterest]()
	}
	if len(out) == 0 && len(symbols) > 0 {
		return noUpdate[model.OpenInterest](fmt.Errorf("all %d symbols failed: %w", len(symbols), lastErr))
	}
	dsvc.SortOpenInterestByUSD(out)
	return updated(out)
}

func (f *Fetchers) openInterestFor(ctx context.Context, symbol string) (model.OpenInterest, error) {
	oi, err := f.src.OpenInterest(ctx, symbol)
	if err != nil {
		return model.OpenInterest{}, err
	}
	tk, err := f.src.Ticker24h(ctx, symbol)
	if err != nil {
		return model.OpenInterest{}, err
	}

	qty, err := decimal.NewFromString(oi.OpenInterest)
	if err != nil {
		return model.OpenInterest{}, fmt.Errorf("parse open interest %q: %w", oi.OpenInterest, err)
	}
	px, err := decimal.NewFromString(tk.LastPrice)
	if err != nil {
		return model.OpenInterest{}, fmt.Errorf("parse last price %q: %w", tk.LastPrice, err)
	}

	usd := qty.Mul(px).InexactFloat64()
	if math.IsInf(usd, 0) {
		return model.OpenInterest{}, fmt.Errorf("open interest %s overflows float64", symbol)
	}
	return model.OpenInterest{
		Symbol:          f.conv.Symbol2Coin(symbol),
		OpenInterestUSD: usd,
	}, nil
}

var errEmptyRatio = errors.New("empty long/short response")

// LongShort 多空比：缺失或格式错误的币种静默跳过，输出保持白名单顺序
func (f *Fetchers) LongShort(ctx context.Context) Result[model.LongShortRatio] {
	symbols := f.capped()
	slots := make([]*model.LongShortRatio, len(symbols))
	errs := make([]error, len(symbols))

	var g errgroup.Group
	g.SetLimit(f.symbolCap)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			r, err := f.longShortFor(ctx, sym)
			if err != nil {
				errs[i] = err
				return nil
			}
			slots[i] = r
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return cancelled[model.LongShortRatio]()
	}

	out := make([]model.LongShortRatio, 0, len(symbols))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	if len(out) == 0 && len(symbols) > 0 {
		return noUpdate[model.LongShortRatio](fmt.Errorf("all %d symbols failed: %w", len(symbols), errors.Join(errs...)))
	}
	return updated(out)
}

func (f *Fetchers) longShortFor(ctx context.Context, symbol string) (*model.LongShortRatio, error) {
	rows, err := f.src.GlobalLongShortAccountRatio(ctx, symbol, LongShortPeriod, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errEmptyRatio
	}
	latest := rows[len(rows)-1]
	long, err := parseFinite(latest.LongAccount)
	if err != nil {
		return nil, fmt.Errorf("parse longAccount %q: %w", latest.LongAccount, err)
	}
	short, err := parseFinite(latest.ShortAccount)
	if err != nil {
		return nil, fmt.Errorf("parse shortAccount %q: %w", latest.ShortAccount, err)
	}
	return &model.LongShortRatio{
		Symbol:        f.conv.Symbol2Coin(symbol),
		LongFraction:  long,
		ShortFraction: short,
	}, nil
}
