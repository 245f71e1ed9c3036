package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"derivagg/internal/application/port"
	"derivagg/internal/domain/model"
)

// DBPool is the subset of *pgxpool.Pool the repo needs.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type Repo struct {
	db DBPool
}

func New(ctx context.Context, dsn string) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	r := NewWithPool(pool)
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func NewWithPool(db DBPool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Close() error {
	r.db.Close()
	return nil
}

func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS derivatives_snapshots (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  last_error TEXT NOT NULL DEFAULT '',
  payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deriv_snapshots_ts ON derivatives_snapshots(ts_ms);

CREATE TABLE IF NOT EXISTS funding_rate_history (
  id BIGSERIAL PRIMARY KEY,
  snapshot_id BIGINT NOT NULL REFERENCES derivatives_snapshots(id) ON DELETE CASCADE,
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  rate DOUBLE PRECISION NOT NULL,
  next_funding_time BIGINT NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_funding_hist_symbol_ts ON funding_rate_history(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS open_interest_history (
  id BIGSERIAL PRIMARY KEY,
  snapshot_id BIGINT NOT NULL REFERENCES derivatives_snapshots(id) ON DELETE CASCADE,
  symbol TEXT NOT NULL,
  oi_usd DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oi_hist_symbol_ts ON open_interest_history(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS long_short_history (
  id BIGSERIAL PRIMARY KEY,
  snapshot_id BIGINT NOT NULL REFERENCES derivatives_snapshots(id) ON DELETE CASCADE,
  symbol TEXT NOT NULL,
  long_fraction DOUBLE PRECISION NOT NULL,
  short_fraction DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ls_hist_symbol_ts ON long_short_history(symbol, ts_ms);
`)
	return err
}

// SaveSnapshot 事务内写入快照；明细行只写本周期刷新过的数据域
func (r *Repo) SaveSnapshot(ctx context.Context, rec port.CycleRecord) error {
	snap := rec.Snapshot
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO derivatives_snapshots(ts_ms, last_error, payload) VALUES($1, $2, $3) RETURNING id`,
		snap.LastRefresh, snap.LastError, string(payload)).Scan(&id); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := insertRows(ctx, tx, id, rec); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func insertRows(ctx context.Context, tx pgx.Tx, id int64, rec port.CycleRecord) error {
	snap := rec.Snapshot
	ts := snap.LastRefresh

	if rec.IsFresh(model.DomainFunding) {
		for _, fr := range snap.Funding {
			if _, err := tx.Exec(ctx,
				`INSERT INTO funding_rate_history(snapshot_id, exchange, symbol, rate, next_funding_time, ts_ms) VALUES($1, $2, $3, $4, $5, $6)`,
				id, fr.Exchange, fr.Symbol, fr.Rate, fr.NextFundingTime, ts); err != nil {
				return fmt.Errorf("insert funding %s: %w", fr.Symbol, err)
			}
		}
	}
	if rec.IsFresh(model.DomainOpenInterest) {
		for _, oi := range snap.OpenInterest {
			if _, err := tx.Exec(ctx,
				`INSERT INTO open_interest_history(snapshot_id, symbol, oi_usd, ts_ms) VALUES($1, $2, $3, $4)`,
				id, oi.Symbol, oi.OpenInterestUSD, ts); err != nil {
				return fmt.Errorf("insert open interest %s: %w", oi.Symbol, err)
			}
		}
	}
	if rec.IsFresh(model.DomainLongShort) {
		for _, ls := range snap.LongShort {
			if _, err := tx.Exec(ctx,
				`INSERT INTO long_short_history(snapshot_id, symbol, long_fraction, short_fraction, ts_ms) VALUES($1, $2, $3, $4, $5)`,
				id, ls.Symbol, ls.LongFraction, ls.ShortFraction, ts); err != nil {
				return fmt.Errorf("insert long/short %s: %w", ls.Symbol, err)
			}
		}
	}
	return nil
}

var _ port.SnapshotRepository = (*Repo)(nil)
