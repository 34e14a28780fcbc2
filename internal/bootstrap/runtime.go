package bootstrap

import (
	"github.com/rs/zerolog"

	"github.com/aqw/HTCrystalBall/internal/config"
	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/observability"
	"github.com/aqw/HTCrystalBall/internal/preview"
)

// Runtime is everything a command needs to answer previews.
type Runtime struct {
	Config  config.Config
	Logger  zerolog.Logger
	Metrics *observability.Registry
	Source  inventory.Source
	Store   *inventory.Store
	Engine  *preview.Engine
}

func New(cfg config.Config) (*Runtime, error) {
	return NewWithLogger(cfg, observability.NewLogger(cfg.Log))
}

func NewWithLogger(cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	metrics := observability.Default
	opts := cfg.InventoryOptions()
	opts.Logger = logger.With().Str("component", "inventory").Logger()
	opts.Metrics = metrics

	src, err := inventory.Open(cfg.SlotsSource, opts)
	if err != nil {
		return nil, err
	}
	engine := preview.NewEngine(preview.Options{
		Logger:  logger.With().Str("component", "preview").Logger(),
		Metrics: metrics,
		Workers: cfg.Workers,
	})
	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Source:  src,
		Store:   inventory.NewStore(src),
		Engine:  engine,
	}, nil
}
