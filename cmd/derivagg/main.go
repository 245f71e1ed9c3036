package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"derivagg/internal/application/usecase/aggregator"
	"derivagg/internal/application/usecase/monitor"
	"derivagg/internal/infrastructure/config"
	"derivagg/internal/infrastructure/container"
	"derivagg/internal/infrastructure/logger"
	"derivagg/internal/interfaces/console"
	"derivagg/internal/interfaces/httpapi"

	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init container failed")
	}
	defer func() { _ = c.Close() }()

	// aggregator core
	store := aggregator.NewStore()
	orch := aggregator.NewOrchestrator(aggregator.NewFetchers(c.Source(), nil))
	ctrl := aggregator.NewController(orch, store, aggregator.RefreshInterval)

	svc := monitor.NewService(monitor.ServiceDeps{
		Controller:       ctrl,
		Store:            store,
		PrintEveryMin:    cfg.App.PrintEveryMin,
		FundingThreshold: cfg.App.FundingThreshold,
		Sink:             console.NewSink(),
		Repo:             c.Repository(),
	})

	log.Info().
		Str("config", *configPath).
		Str("upstream", cfg.Upstream.BaseURL).
		Int("symbols", len(aggregator.TrackedSymbols)).
		Dur("interval", aggregator.RefreshInterval).
		Int("repos", c.Repository().Len()).
		Bool("http", cfg.HTTP.Enabled).
		Msg("derivagg started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	if cfg.HTTP.Enabled {
		router := httpapi.NewRouter(store, ctrl, c.Repository())
		srv := httpapi.NewServer(cfg.HTTP.Addr, router)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("derivagg exited")
	}
	log.Info().Msg("derivagg stopped")
}
