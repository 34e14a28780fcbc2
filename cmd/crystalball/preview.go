package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/aqw/HTCrystalBall/internal/bootstrap"
	"github.com/aqw/HTCrystalBall/internal/config"
	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/observability"
	"github.com/aqw/HTCrystalBall/internal/preview"
	"github.com/aqw/HTCrystalBall/internal/render"
)

func runPreview(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		raw      preview.RawRequest
		verbose  bool
		asJSON   bool
		slotsSrc string
	)
	fs.IntVar(&raw.CPU, "c", 0, "CPU cores per job (required)")
	fs.IntVar(&raw.CPU, "cpu", 0, "CPU cores per job (required)")
	fs.IntVar(&raw.GPU, "g", 0, "GPU units per job")
	fs.IntVar(&raw.GPU, "gpu", 0, "GPU units per job")
	fs.StringVar(&raw.RAM, "r", "", "RAM per job, e.g. 16GiB (required)")
	fs.StringVar(&raw.RAM, "ram", "", "RAM per job, e.g. 16GiB (required)")
	fs.StringVar(&raw.Disk, "d", "", "disk per job, e.g. 50GB")
	fs.StringVar(&raw.Disk, "disk", "", "disk per job, e.g. 50GB")
	fs.IntVar(&raw.Jobs, "j", 1, "number of identical jobs")
	fs.IntVar(&raw.Jobs, "jobs", 1, "number of identical jobs")
	fs.StringVar(&raw.Time, "t", "", "duration of one job, e.g. 2h (default unit minutes)")
	fs.StringVar(&raw.Time, "time", "", "duration of one job, e.g. 2h (default unit minutes)")
	fs.IntVar(&raw.MaxNodes, "m", 0, "show at most this many slots (0 = all)")
	fs.IntVar(&raw.MaxNodes, "maxnodes", 0, "show at most this many slots (0 = all)")
	fs.BoolVar(&verbose, "v", false, "print request, slot and usage details")
	fs.BoolVar(&verbose, "verbose", false, "print request, slot and usage details")
	fs.BoolVar(&asJSON, "json", false, "print the result as JSON")
	fs.StringVar(&slotsSrc, "slots", cfg.SlotsSource, "slot inventory: path, http(s):// URL or s3://bucket/key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	cfg.SlotsSource = slotsSrc

	req, err := preview.NewJobRequest(raw)
	if err != nil {
		return err
	}

	logger := observability.NewLoggerTo(stderr, cfg.Log)
	shutdown, err := observability.InitTracing(ctx, "crystalball", cfg.Tracing)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() { _ = shutdown(context.Background()) }()

	rt, err := bootstrap.NewWithLogger(cfg, logger)
	if err != nil {
		return err
	}
	// A request without cpu or ram is rejected by the engine; there is no
	// point in loading the inventory for it.
	var snap inventory.Snapshot
	if req.Validate() == nil {
		snap, err = rt.Store.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("load slots from %s: %w", rt.Store.Source(), err)
		}
	}
	res, err := rt.Engine.Preview(ctx, snap, req)
	if err != nil {
		return err
	}
	if asJSON {
		return render.JSON(stdout, res)
	}
	return render.Result(stdout, res, verbose)
}
