package aggregator

import "time"

// TrackedSymbols is the fixed allow-list of USDT perpetuals the aggregator follows.
var TrackedSymbols = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT",
	"DOGEUSDT", "ADAUSDT", "AVAXUSDT", "LINKUSDT", "DOTUSDT",
}

const (
	// RefreshInterval 轮询周期
	RefreshInterval = 30 * time.Second

	// SymbolCap bounds the per-symbol fan-out (OI and long/short).
	SymbolCap = 8

	// LongShortPeriod 多空比回看周期
	LongShortPeriod = "5m"
)
