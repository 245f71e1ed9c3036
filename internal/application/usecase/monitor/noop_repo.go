package monitor

import (
	"context"

	"derivagg/internal/application/port"
)

type noopRepo struct{}

func NewNoopRepo() port.SnapshotRepository { return &noopRepo{} }

func (n *noopRepo) SaveSnapshot(ctx context.Context, rec port.CycleRecord) error {
	return nil
}

func (n *noopRepo) Close() error { return nil }
