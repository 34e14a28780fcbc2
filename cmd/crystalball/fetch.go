package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aqw/HTCrystalBall/internal/config"
	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/observability"
)

// runFetch converts a `condor_status -long` dump into a slot inventory.
func runFetch(ctx context.Context, args []string, stdin io.Reader, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "-", "condor_status -long output, - for stdin")
	out := fs.String("out", cfg.SlotsSource, "destination: path or s3://bucket/key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := observability.NewLoggerTo(stderr, cfg.Log)
	opts := cfg.InventoryOptions()
	opts.Logger = logger
	opts.Metrics = observability.Default

	r := stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return fmt.Errorf("open classad dump: %w", err)
		}
		defer f.Close()
		r = f
	}
	ads, err := inventory.ParseClassAds(r)
	if err != nil {
		return err
	}
	snap, skipped, err := inventory.FromClassAds(ads)
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Warn().Int("skipped", skipped).Msg("ignored ads without node name or with unknown slot type")
	}
	if err := inventory.Write(ctx, snap, *out, opts); err != nil {
		return err
	}
	logger.Info().Str("out", *out).Int("nodes", len(snap.Nodes)).Int("slots", snap.SlotCount()).Msg("slot inventory written")
	return nil
}
