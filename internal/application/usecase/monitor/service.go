package monitor

import (
	"context"
	"errors"
	"slices"
	"time"

	"derivagg/internal/application/port"
	"derivagg/internal/application/usecase/aggregator"
	"derivagg/internal/domain/model"

	"github.com/rs/zerolog/log"
)

type ServiceDeps struct {
	Controller       *aggregator.Controller
	Store            *aggregator.Store
	PrintEveryMin    int
	FundingThreshold float64
	Sink             Sink
	Repo             Repository
}

// Service binds the aggregator to the console and the snapshot history.
type Service struct {
	deps ServiceDeps
	fmt  *Formatter

	notify    chan struct{}
	completed chan port.CycleRecord
}

func NewService(deps ServiceDeps) *Service {
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	if deps.PrintEveryMin <= 0 {
		deps.PrintEveryMin = 5
	}
	return &Service{
		deps:      deps,
		fmt:       NewFormatter(deps.FundingThreshold),
		notify:    make(chan struct{}, 1),
		completed: make(chan port.CycleRecord, 16),
	}
}

// Run activates polling and blocks until ctx is done. Polling is deactivated
// and every in-flight cycle has returned before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Controller == nil || s.deps.Store == nil || s.deps.Sink == nil {
		return errors.New("monitor: controller, store and sink are required")
	}

	// listener runs under the store lock: never block here.
	// fresh is only touched from the listener, so the store lock guards it.
	var fresh []model.Domain
	unsubscribe := s.deps.Store.Subscribe(func(c aggregator.Change) {
		select {
		case s.notify <- struct{}{}:
		default:
		}
		switch e := c.Event.(type) {
		case aggregator.Reset:
			fresh = nil
		case aggregator.PartialUpdate:
			if !slices.Contains(fresh, e.Domain) {
				fresh = append(fresh, e.Domain)
			}
		case aggregator.CycleComplete:
			rec := port.CycleRecord{Snapshot: c.Snapshot, Fresh: fresh}
			fresh = nil
			select {
			case s.completed <- rec:
			default:
				log.Warn().Int64("ts_ms", c.Snapshot.LastRefresh).Msg("snapshot history queue full, dropping")
			}
		}
	})
	defer unsubscribe()

	s.deps.Controller.Activate(ctx)
	defer func() {
		s.deps.Controller.Deactivate()
		s.deps.Controller.Wait()
	}()

	snapTicker := time.NewTicker(time.Duration(s.deps.PrintEveryMin) * time.Minute)
	defer snapTicker.Stop()

	_ = s.deps.Sink.WriteLive(s.fmt.Render(s.deps.Store.Snapshot(), RenderLive))

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-snapTicker.C:
			_ = s.deps.Sink.WriteSnapshot(now, s.fmt.Render(s.deps.Store.Snapshot(), RenderSnapshot))

		case <-s.notify:
			_ = s.deps.Sink.WriteLive(s.fmt.Render(s.deps.Store.Snapshot(), RenderLive))

		case rec := <-s.completed:
			if err := s.deps.Repo.SaveSnapshot(ctx, rec); err != nil {
				log.Warn().Err(err).Int64("ts_ms", rec.Snapshot.LastRefresh).Msg("persist snapshot failed")
			}
		}
	}
}
