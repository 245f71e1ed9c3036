package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"derivagg/internal/domain/model"
	dsvc "derivagg/internal/domain/service"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

// Formatter renders a snapshot as one terminal line.
type Formatter struct {
	// FundingThreshold 资金费率着色阈值（绝对值）
	FundingThreshold float64
	// MaxPerSection caps how many symbols each section prints.
	MaxPerSection int
	Location      *time.Location
}

func NewFormatter(threshold float64) *Formatter {
	if threshold <= 0 {
		threshold = 0.0001
	}
	return &Formatter{FundingThreshold: threshold, MaxPerSection: 4, Location: time.Local}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

func (f *Formatter) Render(snap model.AggregateSnapshot, mode RenderMode) string {
	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}
	sb.WriteString(colorize("[DERIV] ", ansiDim))

	// funding
	sb.WriteString("FR ")
	if len(snap.Funding) == 0 {
		sb.WriteString(colorize("--", ansiDim))
	}
	for i, fr := range head(snap.Funding, f.MaxPerSection) {
		if i > 0 {
			sb.WriteString(" ")
		}
		col := ansiYellow
		switch dsvc.FundingColor(fr.Rate, f.FundingThreshold) {
		case +1:
			col = ansiGreen
		case -1:
			col = ansiRed
		}
		sb.WriteString(fr.Symbol)
		sb.WriteString(":")
		sb.WriteString(colorize(fmt.Sprintf("%+.4f%%", fr.Rate*100), col))
	}

	// open interest
	sb.WriteString(colorize("  ||  ", ansiDim))
	sb.WriteString("OI ")
	if len(snap.OpenInterest) == 0 {
		sb.WriteString(colorize("--", ansiDim))
	}
	for i, oi := range head(snap.OpenInterest, f.MaxPerSection) {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(oi.Symbol)
		sb.WriteString(":$")
		sb.WriteString(humanize.Comma(int64(oi.OpenInterestUSD)))
	}

	// long/short
	sb.WriteString(colorize("  ||  ", ansiDim))
	sb.WriteString("L/S ")
	if len(snap.LongShort) == 0 {
		sb.WriteString(colorize("--", ansiDim))
	}
	for i, ls := range head(snap.LongShort, f.MaxPerSection) {
		if i > 0 {
			sb.WriteString(" ")
		}
		col := ansiYellow
		switch {
		case ls.LongFraction > ls.ShortFraction:
			col = ansiGreen
		case ls.LongFraction < ls.ShortFraction:
			col = ansiRed
		}
		sb.WriteString(ls.Symbol)
		sb.WriteString(":")
		sb.WriteString(colorize(fmt.Sprintf("%.0f/%.0f", ls.LongFraction*100, ls.ShortFraction*100), col))
	}

	// status
	sb.WriteString(colorize("  ||  ", ansiDim))
	switch {
	case snap.LastRefresh == 0:
		sb.WriteString(colorize("loading", ansiDim))
	default:
		ts := time.UnixMilli(snap.LastRefresh).In(f.Location).Format("15:04:05")
		sb.WriteString(colorize("@"+ts, ansiDim))
	}
	if snap.IsLoading && snap.LastRefresh != 0 {
		sb.WriteString(colorize(" …", ansiDim))
	}
	if snap.LastError != "" {
		sb.WriteString(" ")
		sb.WriteString(colorize("! "+snap.LastError, ansiRed))
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

func head[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
