package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/logsift/internal/analyzer"
	"github.com/tinytelemetry/logsift/internal/filter"
	"github.com/tinytelemetry/logsift/internal/httpserver"
	"github.com/tinytelemetry/logsift/internal/model"
	"go.uber.org/zap"
)

// apiAnalyzer runs on-demand analyses for the HTTP API with the CLI's
// parsing and metrics settings.
type apiAnalyzer struct {
	base analyzer.Options
}

func (a apiAnalyzer) Analyze(ctx context.Context, paths []string, filters filter.Filters) (model.Report, error) {
	opts := a.base
	opts.Filters = filters
	opts.OnProgress = nil
	return analyzer.Analyze(ctx, paths, opts)
}

// runServe keeps the HTTP API up until ctx is cancelled. initial, when
// non-nil, is published as the first report.
func runServe(ctx context.Context, cfg appConfig, base analyzer.Options, initial *model.Report, log *zap.Logger) error {
	store := httpserver.NewReportStore()
	if initial != nil {
		store.Set(*initial)
	}

	srv := httpserver.NewServer(cfg.APIAddr, store, apiAnalyzer{base: base}, log)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	printServeBanner(cfg, initial)

	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "\nShutting down...")
	return srv.Stop()
}

func printServeBanner(cfg appConfig, initial *model.Report) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("logsift")+" "+dim.Render("v"+version))
	lines = append(lines, "")
	lines = append(lines, bold.Render("    API"))
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	lines = append(lines, "")
	lines = append(lines, bold.Render("    Report"))
	if initial != nil {
		lines = append(lines, fmt.Sprintf("    %s  Latest run     %s", check, dim.Render(fmt.Sprintf("%s (%d files, %d requests)",
			initial.RunID, len(initial.Files), initial.Aggregate.TotalRequests))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Latest run     %s", dot, dim.Render("none yet, POST /api/analyze")))
	}
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Log File       %s", check, dim.Render(shortenPath(cfg.LogFile))))
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Fprintln(os.Stderr, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
