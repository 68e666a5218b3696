package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"github.com/tinytelemetry/logsift/internal/analyzer"
	"github.com/tinytelemetry/logsift/internal/discover"
	"github.com/tinytelemetry/logsift/internal/filter"
	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/metrics"
	"github.com/tinytelemetry/logsift/internal/render"
	"go.uber.org/zap"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Printf("logsift - Concurrent access log analyzer\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return exitOK
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitUsage
	}
	format, _ := render.ParseFormat(cfg.Output)

	filters, err := filter.New(filter.Options{
		From:      cfg.From,
		To:        cfg.To,
		MinStatus: cfg.StatusMin,
		MaxStatus: cfg.StatusMax,
		Endpoint:  cfg.Endpoint,
		AllowIPs:  cfg.AllowIP,
		DenyIPs:   cfg.DenyIP,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	log, closeLog := newLogger(cfg.LogFile, cfg.Verbose)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := analyzer.Options{
		Workers: cfg.Workers,
		Filters: filters,
		Parse:   logparse.Options{SecondsThreshold: cfg.SecondsThreshold},
		Metrics: metrics.Config{
			TopN:            cfg.TopN,
			SlowRequests:    cfg.SlowRequests,
			SpikeSigma:      cfg.SpikeSigma,
			SpikeMinSamples: cfg.SpikeMinSamples,
		},
		SampleLines:   cfg.SampleLines,
		FallbackAfter: cfg.FallbackAfter,
		MaxLineBytes:  cfg.MaxLineBytes,
		Logger:        log,
	}

	inputs := fs.Args()
	if len(inputs) == 0 && cfg.Serve {
		if err := runServe(ctx, cfg, opts, nil, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	paths, err := discover.Files(inputs, discover.Options{Extensions: cfg.Extensions, MaxDepth: cfg.MaxDepth})
	if err != nil {
		if errors.Is(err, discover.ErrNoInputs) {
			fs.Usage()
			return exitUsage
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no log files found")
		return exitFailure
	}
	log.Info("starting analysis", zap.Int("files", len(paths)), zap.Int("workers", cfg.Workers))
	if filters.Active() {
		log.Info("filters enabled",
			zap.Int("status_min", filters.MinStatus),
			zap.Int("status_max", filters.MaxStatus),
			zap.Bool("endpoint_pattern", filters.Endpoint != nil),
			zap.Int("allow_entries", filters.Allow.Len()),
			zap.Int("deny_entries", filters.Deny.Len()))
	}

	var ui *progressUI
	if !cfg.NoProgress && !cfg.Verbose && isatty.IsTerminal(os.Stderr.Fd()) {
		ui = startProgressUI(os.Stderr, len(paths))
		opts.OnProgress = ui.Callback
	}

	report, err := analyzer.Analyze(ctx, paths, opts)
	if ui != nil {
		ui.Stop()
	}

	code := exitOK
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Analysis cancelled; showing partial results.")
		code = exitCancelled
	case errors.Is(err, analyzer.ErrAllFilesFailed):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = exitFailure
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	case report.FailedFiles > 0:
		fmt.Fprintf(os.Stderr, "Warning: %d of %d files could not be read\n", report.FailedFiles, len(report.Files))
	}

	if err := render.Write(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		return exitFailure
	}

	if cfg.Serve && code != exitCancelled {
		if err := runServe(ctx, cfg, opts, &report, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	return code
}
