package monitor

import (
	"strings"
	"testing"
	"time"

	"derivagg/internal/domain/model"
)

func TestRenderLoading(t *testing.T) {
	f := NewFormatter(0)
	line := f.Render(model.InitialSnapshot(), RenderLive)

	if !strings.HasPrefix(line, "\r") || !strings.HasSuffix(line, ansiClearEOL) {
		t.Errorf("live line must start with CR and end with clear-EOL: %q", line)
	}
	if !strings.Contains(line, "loading") {
		t.Errorf("expected loading marker, got %q", line)
	}
}

func TestRenderSnapshot(t *testing.T) {
	f := NewFormatter(0.0001)
	f.Location = time.UTC

	snap := model.AggregateSnapshot{
		Funding: []model.FundingRate{
			{Symbol: "ETH", Rate: -0.0015},
			{Symbol: "BTC", Rate: 0.0002},
		},
		OpenInterest: []model.OpenInterest{{Symbol: "BTC", OpenInterestUSD: 6_000_000}},
		LongShort:    []model.LongShortRatio{{Symbol: "BTC", LongFraction: 0.55, ShortFraction: 0.45}},
		LastRefresh:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(),
		LastError:    "open_interest: timeout",
	}
	line := f.Render(snap, RenderSnapshot)

	for _, want := range []string{
		"ETH:" + ansiRed + "-0.1500%",
		"BTC:" + ansiGreen + "+0.0200%",
		"BTC:$6,000,000",
		"BTC:" + ansiGreen + "55/45",
		"@03:04:05",
		"! open_interest: timeout",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
	if strings.HasPrefix(line, "\r") {
		t.Errorf("snapshot line must not start with CR")
	}
	if strings.Index(line, "ETH:") > strings.Index(line, "BTC:") {
		t.Errorf("funding order must follow snapshot order")
	}
}

func TestRenderCapsSection(t *testing.T) {
	f := NewFormatter(0)
	f.MaxPerSection = 1
	snap := model.AggregateSnapshot{Funding: []model.FundingRate{{Symbol: "AAA"}, {Symbol: "BBB"}}}
	if line := f.Render(snap, RenderSnapshot); strings.Contains(line, "BBB") {
		t.Errorf("expected section capped to 1 symbol: %q", line)
	}
}
