package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derivagg/internal/application/port"
	"derivagg/internal/domain/model"
)

func newTestRepo(t *testing.T) (*miniredis.Miniredis, *redis.Client, *Repo) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return srv, rdb, New(rdb, Options{Prefix: "test", TTL: time.Minute})
}

func record() port.CycleRecord {
	return port.CycleRecord{
		Snapshot: model.AggregateSnapshot{
			Funding:     []model.FundingRate{{Symbol: "ETH", Rate: -0.0015, Exchange: "binance"}},
			LastRefresh: 1700000000000,
		},
		Fresh: []model.Domain{model.DomainFunding},
	}
}

func TestRedisRepoSaveAndLatest(t *testing.T) {
	srv, rdb, repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, record()))

	got, err := repo.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), got.LastRefresh)
	require.Len(t, got.Funding, 1)
	assert.Equal(t, "ETH", got.Funding[0].Symbol)

	assert.True(t, srv.Exists("test:latest"))
	assert.Equal(t, time.Minute, srv.TTL("test:latest"))

	n, err := rdb.XLen(ctx, "test:snapshots").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisRepoLatestMissing(t *testing.T) {
	_, _, repo := newTestRepo(t)
	_, err := repo.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, port.ErrNoSnapshot)
}

func TestRedisRepoPublishes(t *testing.T) {
	_, rdb, repo := newTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, "test:snapshots:pub")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.SaveSnapshot(ctx, record()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got model.AggregateSnapshot
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, int64(1700000000000), got.LastRefresh)
}

func TestRedisRepoLatestExpires(t *testing.T) {
	srv, _, repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, record()))
	srv.FastForward(2 * time.Minute)

	_, err := repo.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, port.ErrNoSnapshot)
}
