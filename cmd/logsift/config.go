package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tinytelemetry/logsift/internal/model"
	"github.com/tinytelemetry/logsift/internal/render"
)

const (
	defaultAPIAddr = "127.0.0.1:3000"
	defaultOutput  = string(render.FormatText)
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Workers          int      `mapstructure:"workers"`
	Output           string   `mapstructure:"output"`
	NoProgress       bool     `mapstructure:"no-progress"`
	From             string   `mapstructure:"from"`
	To               string   `mapstructure:"to"`
	StatusMin        int      `mapstructure:"status-min"`
	StatusMax        int      `mapstructure:"status-max"`
	Endpoint         string   `mapstructure:"endpoint"`
	AllowIP          string   `mapstructure:"allow-ip"`
	DenyIP           string   `mapstructure:"deny-ip"`
	SampleLines      int      `mapstructure:"sample-lines"`
	FallbackAfter    int      `mapstructure:"fallback-after"`
	MaxLineBytes     int      `mapstructure:"max-line-bytes"`
	SecondsThreshold float64  `mapstructure:"seconds-threshold"`
	TopN             int      `mapstructure:"top-n"`
	SlowRequests     int      `mapstructure:"slow-requests"`
	SpikeSigma       float64  `mapstructure:"spike-sigma"`
	SpikeMinSamples  int64    `mapstructure:"spike-min-samples"`
	Extensions       []string `mapstructure:"extensions"`
	MaxDepth         int      `mapstructure:"max-depth"`
	Serve            bool     `mapstructure:"serve"`
	APIAddr          string   `mapstructure:"api-addr"`
	Verbose          bool     `mapstructure:"verbose"`
	LogFile          string   `mapstructure:"log-file"`
	ConfigPath       string   `mapstructure:"-"` // not from config file
}

// newFlagSet declares every command-line flag. Flag names double as viper keys.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("logsift", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: logsift [flags] <file|dir>...\n\n")
		fs.PrintDefaults()
	}

	fs.StringP("config", "c", "", "config file (default is $HOME/.config/logsift/config.yml)")
	fs.Bool("version", false, "print version information")
	fs.IntP("workers", "w", 0, "files processed in parallel (0 = GOMAXPROCS)")
	fs.StringP("output", "o", defaultOutput, "output format: "+formatList())
	fs.Bool("no-progress", false, "disable the progress bar")

	fs.String("from", "", "only requests at or after this time (RFC3339 or YYYY-MM-DD)")
	fs.String("to", "", "only requests before this time; a bare date includes the whole day")
	fs.Int("status-min", 0, "minimum status code, inclusive")
	fs.Int("status-max", 0, "maximum status code, inclusive")
	fs.StringP("endpoint", "e", "", "regular expression the request path must match")
	fs.String("allow-ip", "", "comma-separated client addresses or CIDRs to keep")
	fs.String("deny-ip", "", "comma-separated client addresses or CIDRs to drop")

	fs.Int("sample-lines", model.DefaultSampleLines, "lines sampled per file for format detection")
	fs.Int("fallback-after", model.DefaultFallbackAfter, "consecutive parse failures before per-line detection (0 = off)")
	fs.Int("max-line-bytes", model.DefaultMaxLineBytes, "longest accepted line in bytes")
	fs.Float64("seconds-threshold", model.DefaultSecondsThreshold, "unit-less response times below this are read as seconds")
	fs.Int("top-n", model.DefaultTopN, "entries kept in ranked lists")
	fs.Int("slow-requests", model.DefaultSlowRequests, "slowest requests kept")
	fs.Float64("spike-sigma", model.DefaultSpikeSigma, "standard deviations above the mean that make an error-rate spike")
	fs.Int64("spike-min-samples", model.DefaultSpikeMinSamples, "requests an hour needs before it can be a spike")
	fs.StringSlice("extensions", nil, "file extensions picked up when walking directories")
	fs.Int("max-depth", 0, "directory recursion limit (0 = unlimited)")

	fs.Bool("serve", false, "keep running and serve the report over HTTP")
	fs.String("api-addr", defaultAPIAddr, "HTTP API listen address in serve mode")
	fs.BoolP("verbose", "v", false, "log to stderr as well as the log file")
	fs.String("log-file", "", "log file (default is $HOME/.local/state/logsift/logsift.log)")
	return fs
}

func loadConfig(fs *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LOGSIFT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("workers", 0)
	v.SetDefault("output", defaultOutput)
	v.SetDefault("no-progress", false)
	v.SetDefault("sample-lines", model.DefaultSampleLines)
	v.SetDefault("fallback-after", model.DefaultFallbackAfter)
	v.SetDefault("max-line-bytes", model.DefaultMaxLineBytes)
	v.SetDefault("seconds-threshold", model.DefaultSecondsThreshold)
	v.SetDefault("top-n", model.DefaultTopN)
	v.SetDefault("slow-requests", model.DefaultSlowRequests)
	v.SetDefault("spike-sigma", model.DefaultSpikeSigma)
	v.SetDefault("spike-min-samples", model.DefaultSpikeMinSamples)
	v.SetDefault("serve", false)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("verbose", false)
	v.SetDefault("log-file", filepath.Join(home, ".local", "state", "logsift", "logsift.log"))

	if err := v.BindPFlags(fs); err != nil {
		return cfg, fmt.Errorf("binding flags: %w", err)
	}

	configPath, _ := fs.GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "logsift", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if configPath != "" || (!errors.As(err, &configFileNotFound) && !os.IsNotExist(err)) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	if cfg.Workers < 0 {
		return cfg, fmt.Errorf("invalid workers: %d", cfg.Workers)
	}
	if _, err := render.ParseFormat(cfg.Output); err != nil {
		return cfg, err
	}
	if cfg.SampleLines <= 0 {
		return cfg, fmt.Errorf("invalid sample-lines: %d", cfg.SampleLines)
	}
	if cfg.MaxLineBytes <= 0 {
		return cfg, fmt.Errorf("invalid max-line-bytes: %d", cfg.MaxLineBytes)
	}
	if cfg.SecondsThreshold < 0 {
		return cfg, fmt.Errorf("invalid seconds-threshold: %v", cfg.SecondsThreshold)
	}

	// Expand ~ in log-file
	if strings.HasPrefix(cfg.LogFile, "~/") {
		cfg.LogFile = filepath.Join(home, cfg.LogFile[2:])
	}

	return cfg, nil
}

func formatList() string {
	names := make([]string, 0, len(render.Formats()))
	for _, f := range render.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
