package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eternisai/maintenance-tracker/internal/api"
	"github.com/eternisai/maintenance-tracker/internal/config"
	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/metrics"
)

// Global carries what every command needs.
type Global struct {
	Config   *config.Config
	Logger   *logger.Logger
	Client   *api.Client
	Registry *prometheus.Registry
	Recorder *metrics.PrometheusRecorder
}

// CLI definition & global flags.
type CLI struct {
	APIURL  string `name:"api-url" help:"Backend base URL (overrides API_BASE_URL)"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	List   ListCmd   `cmd:"" help:"Show one page of maintenance requests"`
	Create CreateCmd `cmd:"" help:"Submit a new maintenance request"`
	Stats  StatsCmd  `cmd:"" help:"Show aggregate request statistics"`
	Watch  WatchCmd  `cmd:"" help:"Live dashboard that follows backend changes"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dashboard"),
		kong.Description("Maintenance Request Tracker dashboard"),
		kong.UsageOnError(),
	)

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cli.APIURL != "" {
		cfg.APIBaseURL = cli.APIURL
	}
	if cli.Verbose {
		cfg.LogLevel = "debug"
	}

	logCfg := logger.FromConfig(cfg.LogLevel, cfg.LogFormat)
	logCfg.Output = os.Stderr
	log := logger.New(logCfg)

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	global := &Global{
		Config:   cfg,
		Logger:   log,
		Client:   api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, log, api.WithRecorder(recorder)),
		Registry: reg,
		Recorder: recorder,
	}

	ctx.FatalIfErrorf(ctx.Run(global))
}
