package port

import (
	"context"
	"errors"
	"slices"

	"derivagg/internal/domain/model"
)

var (
	// ErrNoHistory 没有可查询历史的存储
	ErrNoHistory = errors.New("no repository supports history queries")
	// ErrNoSnapshot 尚未持久化任何快照
	ErrNoSnapshot = errors.New("no snapshot persisted yet")
)

// CycleRecord is one completed cycle as handed to persistence. Fresh lists the
// domains whose data arrived during the cycle; the others in Snapshot are
// carried over from earlier cycles.
type CycleRecord struct {
	Snapshot model.AggregateSnapshot
	Fresh    []model.Domain
}

func (r CycleRecord) IsFresh(d model.Domain) bool {
	return slices.Contains(r.Fresh, d)
}

// SnapshotRepository 快照历史存储（只写历史，激活时不会回读）
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, rec CycleRecord) error
	Close() error
}

// SnapshotReader is what presentation adapters may depend on.
type SnapshotReader interface {
	Snapshot() model.AggregateSnapshot
}

// Refresher triggers one out-of-schedule cycle. It reports false when polling is inactive.
type Refresher interface {
	ManualRefresh() bool
}

// FundingPoint 一条历史资金费率记录
type FundingPoint struct {
	Rate model.FundingRate `json:"rate"`
	Ts   int64             `json:"ts_ms"` // cycle refresh time
}

// FundingHistory is implemented by repositories that can answer history queries.
type FundingHistory interface {
	FundingHistory(ctx context.Context, symbol string, limit int) ([]FundingPoint, error)
}

// LatestSnapshotReader returns the last persisted snapshot, or ErrNoSnapshot.
type LatestSnapshotReader interface {
	LatestSnapshot(ctx context.Context) (model.AggregateSnapshot, error)
}

// History is the read side of persistence used by the HTTP API.
type History interface {
	FundingHistory
	LatestSnapshotReader
}
