package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derivagg/internal/application/port"
	"derivagg/internal/domain/model"
	"derivagg/internal/infrastructure/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Upstream.BaseURL = "http://127.0.0.1:1"
	cfg.Upstream.TimeoutMs = 1000
	return cfg
}

func TestNewWithoutStorage(t *testing.T) {
	c, err := New(context.Background(), baseConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.Source())
	assert.Equal(t, "binance", c.Source().Name())
	assert.Zero(t, c.Repository().Len())
	assert.NoError(t, c.Repository().SaveSnapshot(context.Background(), port.CycleRecord{Snapshot: model.InitialSnapshot()}))

	_, err = c.Repository().LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, port.ErrNoHistory)
}

func TestNewWithSQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := baseConfig()
	cfg.Storage.Enabled = true
	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "derivagg.db")
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = mr.Addr()

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Repository().Len())
	require.NotNil(t, c.SQLiteRepo())
	require.NotNil(t, c.RedisClient())

	snap := model.InitialSnapshot()
	snap.IsLoading = false
	snap.LastRefresh = 1_700_000_000_000
	snap.Funding = []model.FundingRate{{Symbol: "BTC", Rate: 0.0001, Exchange: "binance"}}
	rec := port.CycleRecord{Snapshot: snap, Fresh: []model.Domain{model.DomainFunding}}
	require.NoError(t, c.Repository().SaveSnapshot(context.Background(), rec))

	latest, err := c.Repository().LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), latest.LastRefresh)

	hist, err := c.Repository().FundingHistory(context.Background(), "BTC", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 0.0001, hist[0].Rate.Rate)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "Close must be idempotent")
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := baseConfig()
	cfg.Storage.Enabled = true
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = addr

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageInitFailed)
}
