package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derivagg/internal/application/port"
	"derivagg/internal/application/usecase/aggregator"
	"derivagg/internal/domain/model"
)

type onceCycler struct{}

func (onceCycler) RunCycle(ctx context.Context, emit func(aggregator.Event)) bool {
	emit(aggregator.PartialUpdate{Domain: model.DomainFunding, Funding: []model.FundingRate{{Symbol: "BTC", Rate: 0.0002}}})
	emit(aggregator.CycleComplete{At: 1_700_000_000_000})
	return true
}

type memSink struct {
	mu   sync.Mutex
	live []string
}

func (s *memSink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = append(s.live, line)
	return nil
}
func (s *memSink) WriteSnapshot(ts time.Time, line string) error { return nil }
func (s *memSink) NewLine() error                                { return nil }

func (s *memSink) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.live...)
}

type memRepo struct {
	mu   sync.Mutex
	recs []port.CycleRecord
	err  error
}

func (r *memRepo) SaveSnapshot(ctx context.Context, rec port.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return r.err
}
func (r *memRepo) Close() error { return nil }

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

func TestServiceRendersAndPersistsCompletedCycles(t *testing.T) {
	store := aggregator.NewStore()
	ctrl := aggregator.NewController(onceCycler{}, store, time.Hour)
	sink := &memSink{}
	repo := &memRepo{err: errors.New("disk full")} // persistence errors must not stop the loop

	svc := NewService(ServiceDeps{Controller: ctrl, Store: store, Sink: sink, Repo: repo})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		lines := sink.lines()
		return len(lines) > 0 && strings.Contains(lines[len(lines)-1], "BTC:")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, ctrl.Active())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	rec := repo.recs[0]
	assert.Equal(t, int64(1_700_000_000_000), rec.Snapshot.LastRefresh)
	assert.Len(t, rec.Snapshot.Funding, 1)
	assert.Equal(t, []model.Domain{model.DomainFunding}, rec.Fresh)
	assert.False(t, rec.IsFresh(model.DomainOpenInterest))
}

func runUntilSaved(t *testing.T, svc *Service, repo *memRepo, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.count() >= want }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond) // let any duplicate record land
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestServiceRunTwiceDoesNotDuplicateRecords(t *testing.T) {
	store := aggregator.NewStore()
	ctrl := aggregator.NewController(onceCycler{}, store, time.Hour)
	repo := &memRepo{}
	svc := NewService(ServiceDeps{Controller: ctrl, Store: store, Sink: &memSink{}, Repo: repo})

	runUntilSaved(t, svc, repo, 1)
	runUntilSaved(t, svc, repo, 2)
	assert.Equal(t, 2, repo.count(), "one record per completed cycle")

	// no listener survives Run
	store.Dispatch(aggregator.CycleComplete{At: 9})
	assert.Empty(t, svc.completed)
}

func TestServiceRequiresDeps(t *testing.T) {
	err := NewService(ServiceDeps{}).Run(context.Background())
	assert.Error(t, err)
}
