package main

import (
	"context"
	"flag"
	"io"

	"github.com/aqw/HTCrystalBall/internal/api"
	"github.com/aqw/HTCrystalBall/internal/bootstrap"
	"github.com/aqw/HTCrystalBall/internal/config"
	"github.com/aqw/HTCrystalBall/internal/observability"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	slots := fs.String("slots", cfg.SlotsSource, "slot inventory: path, http(s):// URL or s3://bucket/key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.HTTPAddr = *addr
	cfg.SlotsSource = *slots

	logger := observability.NewLoggerTo(stderr, cfg.Log)
	shutdown, err := observability.InitTracing(ctx, "crystalball-api", cfg.Tracing)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() { _ = shutdown(context.Background()) }()

	rt, err := bootstrap.NewWithLogger(cfg, logger)
	if err != nil {
		return err
	}
	if _, err := rt.Store.Reload(ctx); err != nil {
		logger.Warn().Err(err).Str("slots", rt.Store.Source()).Msg("initial inventory load failed, will retry on first request")
	}
	srv := api.NewServer(rt.Store, rt.Engine, rt.Metrics, logger.With().Str("component", "api").Logger())
	return srv.Run(ctx, cfg.HTTPAddr)
}
