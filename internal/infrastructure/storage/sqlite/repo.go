package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"derivagg/internal/application/port"
	"derivagg/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  last_error TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);

CREATE TABLE IF NOT EXISTS funding_rates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  snapshot_id INTEGER NOT NULL,
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  rate REAL NOT NULL,
  next_funding_time INTEGER NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_funding_symbol_ts ON funding_rates(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS open_interest (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  snapshot_id INTEGER NOT NULL,
  symbol TEXT NOT NULL,
  oi_usd REAL NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oi_symbol_ts ON open_interest(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS long_short (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  snapshot_id INTEGER NOT NULL,
  symbol TEXT NOT NULL,
  long_fraction REAL NOT NULL,
  short_fraction REAL NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ls_symbol_ts ON long_short(symbol, ts_ms);
`)
	return err
}

// SaveSnapshot 写入一次完整周期的快照（事务内）
// 明细行只写本周期刷新过的数据域，沿用的旧数据不重复记为新观测
func (r *Repo) SaveSnapshot(ctx context.Context, rec port.CycleRecord) error {
	snap := rec.Snapshot
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := snap.LastRefresh
	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots(ts_ms, last_error, payload, created_at) VALUES(?, ?, ?, ?)`,
		ts, snap.LastError, string(payload), time.Now().UnixMilli())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if rec.IsFresh(model.DomainFunding) {
		for _, fr := range snap.Funding {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO funding_rates(snapshot_id, exchange, symbol, rate, next_funding_time, ts_ms) VALUES(?, ?, ?, ?, ?, ?)`,
				id, fr.Exchange, fr.Symbol, fr.Rate, fr.NextFundingTime, ts); err != nil {
				return err
			}
		}
	}
	if rec.IsFresh(model.DomainOpenInterest) {
		for _, oi := range snap.OpenInterest {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO open_interest(snapshot_id, symbol, oi_usd, ts_ms) VALUES(?, ?, ?, ?)`,
				id, oi.Symbol, oi.OpenInterestUSD, ts); err != nil {
				return err
			}
		}
	}
	if rec.IsFresh(model.DomainLongShort) {
		for _, ls := range snap.LongShort {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO long_short(snapshot_id, symbol, long_fraction, short_fraction, ts_ms) VALUES(?, ?, ?, ?, ?)`,
				id, ls.Symbol, ls.LongFraction, ls.ShortFraction, ts); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// LatestSnapshot returns the most recently persisted snapshot, or port.ErrNoSnapshot.
func (r *Repo) LatestSnapshot(ctx context.Context) (model.AggregateSnapshot, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots ORDER BY ts_ms DESC, id DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AggregateSnapshot{}, port.ErrNoSnapshot
	}
	if err != nil {
		return model.AggregateSnapshot{}, err
	}
	var snap model.AggregateSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return model.AggregateSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// FundingHistory 单币种资金费率历史，最新在前
func (r *Repo) FundingHistory(ctx context.Context, symbol string, limit int) ([]port.FundingPoint, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT exchange, symbol, rate, next_funding_time, ts_ms FROM funding_rates WHERE symbol=? ORDER BY ts_ms DESC, id DESC LIMIT ?`,
		symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []port.FundingPoint
	for rows.Next() {
		var p port.FundingPoint
		if err := rows.Scan(&p.Rate.Exchange, &p.Rate.Symbol, &p.Rate.Rate, &p.Rate.NextFundingTime, &p.Ts); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var (
	_ port.SnapshotRepository = (*Repo)(nil)
	_ port.History            = (*Repo)(nil)
)
