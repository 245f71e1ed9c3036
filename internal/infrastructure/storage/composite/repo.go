package composite

import (
	"context"
	"errors"

	"derivagg/internal/application/port"
	"derivagg/internal/domain/model"
)

// Repo fans a snapshot out to every configured repository.
type Repo struct {
	repos []port.SnapshotRepository
}

func New(repos ...port.SnapshotRepository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.SnapshotRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

// SaveSnapshot writes to all repos even when one fails and returns the first error.
func (r *Repo) SaveSnapshot(ctx context.Context, rec port.CycleRecord) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.SaveSnapshot(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FundingHistory is served by the first repo that supports history queries.
func (r *Repo) FundingHistory(ctx context.Context, symbol string, limit int) ([]port.FundingPoint, error) {
	for _, repo := range r.repos {
		if h, ok := repo.(port.FundingHistory); ok {
			return h.FundingHistory(ctx, symbol, limit)
		}
	}
	return nil, port.ErrNoHistory
}

// LatestSnapshot 取第一个可回读快照的仓储
func (r *Repo) LatestSnapshot(ctx context.Context) (model.AggregateSnapshot, error) {
	for _, repo := range r.repos {
		if l, ok := repo.(port.LatestSnapshotReader); ok {
			return l.LatestSnapshot(ctx)
		}
	}
	return model.AggregateSnapshot{}, port.ErrNoHistory
}

func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		errs = append(errs, repo.Close())
	}
	return errors.Join(errs...)
}

var (
	_ port.SnapshotRepository = (*Repo)(nil)
	_ port.History            = (*Repo)(nil)
)
