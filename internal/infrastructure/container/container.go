package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"derivagg/internal/application/port"
	"derivagg/internal/infrastructure/config"
	"derivagg/internal/infrastructure/exchange/binance"
	"derivagg/internal/infrastructure/storage/composite"
	pgrepo "derivagg/internal/infrastructure/storage/postgres"
	redisrepo "derivagg/internal/infrastructure/storage/redis"
	sqliterepo "derivagg/internal/infrastructure/storage/sqlite"
)

// Container 包含所有应用依赖
type Container struct {
	cfg         *config.Config
	client      *binance.FuturesClient
	redisClient *redis.Client
	sqliteRepo  *sqliterepo.Repo
	redisRepo   *redisrepo.Repo
	pgRepo      *pgrepo.Repo
	repo        *composite.Repo
	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	c.client = binance.NewFuturesClient(binance.ClientOptions{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.Timeout(),
		RateLimit: cfg.Upstream.RateLimitRPS,
		Burst:     cfg.Upstream.RateBurst,
	})

	if cfg.Storage.Enabled {
		if err := c.initStorage(ctx); err != nil {
			// 清理已初始化的资源
			_ = c.Close()
			return nil, fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
		}
	}

	// composite 本身不持有连接，关闭由 closerChain 负责
	c.repo = composite.New(c.repos()...)
	return c, nil
}

func (c *Container) repos() []port.SnapshotRepository {
	var out []port.SnapshotRepository
	// sqlite 优先：composite 从第一个支持历史查询的仓储读取
	if c.sqliteRepo != nil {
		out = append(out, c.sqliteRepo)
	}
	if c.pgRepo != nil {
		out = append(out, c.pgRepo)
	}
	if c.redisRepo != nil {
		out = append(out, c.redisRepo)
	}
	return out
}

// initStorage 初始化存储层（Redis、SQLite、Postgres）
func (c *Container) initStorage(ctx context.Context) error {
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(ctx); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}
	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(ctx); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis(ctx context.Context) error {
	rc := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisRepo = redisrepo.New(rdb, redisrepo.Options{
		Prefix:       rc.Prefix,
		TTL:          time.Duration(rc.TTLSeconds) * time.Second,
		Stream:       rc.Stream,
		Channel:      rc.Channel,
		StreamMaxLen: rc.StreamMaxLen,
	})

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")
	return nil
}

func (c *Container) initPostgres(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, err := pgrepo.New(connCtx, c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	c.pgRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres pool")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Source 行情数据源
func (c *Container) Source() *binance.FuturesClient {
	return c.client
}

// Repository 快照仓储；未启用存储时为空 composite，写入即丢弃
func (c *Container) Repository() *composite.Repo {
	return c.repo
}

// RedisClient 获取 Redis 客户端
func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

// SQLiteRepo 获取 SQLite 仓储
func (c *Container) SQLiteRepo() *sqliterepo.Repo {
	return c.sqliteRepo
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
