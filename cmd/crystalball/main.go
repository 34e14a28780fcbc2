package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aqw/HTCrystalBall/internal/preview"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "preview":
		err = runPreview(ctx, os.Args[2:], os.Stdout, os.Stderr)
	case "fetch":
		err = runFetch(ctx, os.Args[2:], os.Stdin, os.Stderr)
	case "serve":
		err = runServe(ctx, os.Args[2:], os.Stderr)
	case "version":
		fmt.Println("crystalball", version)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return
	}
	var missing *preview.MissingResourceError
	if errors.As(err, &missing) {
		fmt.Fprintf(os.Stderr, "WARNING: %v --- ABORTING\n", err)
		stop()
		os.Exit(2)
	}
	stop()
	fatalf("%v", err)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: crystalball <preview|fetch|serve|version> [...]")
	fmt.Fprintln(w, "  preview  -c CPUS -r RAM [-g GPUS] [-d DISK] [-j JOBS] [-t TIME] [-m MAXNODES] [-v] [--json]")
	fmt.Fprintln(w, "  fetch    --input condor_status.txt [--out config/slots.json|s3://bucket/key]")
	fmt.Fprintln(w, "  serve    [--addr :8080]")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
