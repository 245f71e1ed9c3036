package aggregator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"derivagg/internal/domain/model"
)

// Orchestrator runs the three fetchers of one cycle concurrently and joins on
// all of them. A failing fetcher never short-circuits the others.
type Orchestrator struct {
	fetchers *Fetchers
	now      func() time.Time
}

func NewOrchestrator(f *Fetchers) *Orchestrator {
	return &Orchestrator{fetchers: f, now: time.Now}
}

// RunCycle emits each domain's outcome as soon as it settles, then a single
// CycleComplete once all three have settled. It reports false and emits no
// CycleComplete when ctx was cancelled before the join.
func (o *Orchestrator) RunCycle(ctx context.Context, emit func(Event)) bool {
	var failures atomic.Int32
	var g errgroup.Group

	g.Go(func() error {
		r := o.fetchers.Funding(ctx)
		settle(ctx, model.DomainFunding, r, &failures, emit, func(items []model.FundingRate) PartialUpdate {
			return PartialUpdate{Domain: model.DomainFunding, Funding: items}
		})
		return nil
	})
	g.Go(func() error {
		r := o.fetchers.OpenInterest(ctx)
		settle(ctx, model.DomainOpenInterest, r, &failures, emit, func(items []model.OpenInterest) PartialUpdate {
			return PartialUpdate{Domain: model.DomainOpenInterest, OpenInterest: items}
		})
		return nil
	})
	g.Go(func() error {
		r := o.fetchers.LongShort(ctx)
		settle(ctx, model.DomainLongShort, r, &failures, emit, func(items []model.LongShortRatio) PartialUpdate {
			return PartialUpdate{Domain: model.DomainLongShort, LongShort: items}
		})
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return false
	}
	emit(CycleComplete{At: o.now().UnixMilli(), Failures: int(failures.Load())})
	return true
}

func settle[T any](ctx context.Context, d model.Domain, r Result[T], failures *atomic.Int32, emit func(Event), wrap func([]T) PartialUpdate) {
	switch r.Status {
	case StatusUpdated:
		emit(wrap(r.Items))
	case StatusNoUpdate:
		if ctx.Err() != nil {
			return
		}
		failures.Add(1)
		log.Warn().Err(r.Err).Str("domain", d.String()).Msg("fetch failed, keeping previous data")
		emit(CycleError{Message: fmt.Sprintf("%s: %v", d, r.Err)})
	case StatusCancelled:
	}
}
