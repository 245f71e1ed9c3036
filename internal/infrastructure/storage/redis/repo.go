package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"derivagg/internal/application/port"
	"derivagg/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// Repo keeps the latest snapshot under one key, appends every snapshot to a
// capped stream and publishes it for live consumers.
type Repo struct {
	rdb          *redis.Client
	ttl          time.Duration
	keyLatest    string // prefix + ":latest"
	stream       string
	channel      string
	streamMaxLen int64
}

type Options struct {
	Prefix       string
	TTL          time.Duration
	Stream       string
	Channel      string
	StreamMaxLen int64
}

func New(rdb *redis.Client, opts Options) *Repo {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "derivagg"
	}
	stream := strings.TrimSpace(opts.Stream)
	if stream == "" {
		stream = prefix + ":snapshots"
	}
	channel := strings.TrimSpace(opts.Channel)
	if channel == "" {
		channel = prefix + ":snapshots:pub"
	}
	maxLen := opts.StreamMaxLen
	if maxLen <= 0 {
		maxLen = 2880 // one day at 30s
	}
	return &Repo{
		rdb:          rdb,
		ttl:          opts.TTL,
		keyLatest:    prefix + ":latest",
		stream:       stream,
		channel:      channel,
		streamMaxLen: maxLen,
	}
}

// SaveSnapshot stores the full snapshot; the stream and channel carry state,
// not per-domain observations, so carried-over domains are kept as is.
func (r *Repo) SaveSnapshot(ctx context.Context, rec port.CycleRecord) error {
	snap := rec.Snapshot
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, r.keyLatest, b, r.ttl)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"ts_ms":   snap.LastRefresh,
			"payload": string(b),
		},
	})
	pipe.Publish(ctx, r.channel, b)
	_, err = pipe.Exec(ctx)
	return err
}

// LatestSnapshot 读取最近一次快照; port.ErrNoSnapshot when absent or expired
func (r *Repo) LatestSnapshot(ctx context.Context) (model.AggregateSnapshot, error) {
	var snap model.AggregateSnapshot
	b, err := r.rdb.Get(ctx, r.keyLatest).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, port.ErrNoSnapshot
	}
	if err != nil {
		return snap, err
	}
	err = json.Unmarshal(b, &snap)
	return snap, err
}

// Close is a no-op: the client belongs to the container.
func (r *Repo) Close() error { return nil }

var (
	_ port.SnapshotRepository   = (*Repo)(nil)
	_ port.LatestSnapshotReader = (*Repo)(nil)
)
