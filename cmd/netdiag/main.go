package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iaserrat/netdiag/internal/config"
	"github.com/iaserrat/netdiag/internal/health"
	"github.com/iaserrat/netdiag/internal/logging"
	"github.com/iaserrat/netdiag/internal/probe"
	"github.com/iaserrat/netdiag/internal/resolve"
	"github.com/iaserrat/netdiag/internal/traceroute"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv("NETDIAG_CONFIG"), "Path to a TOML or YAML config file (optional)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if dir := os.Getenv("NETDIAG_LOG_DIR"); dir != "" {
		cfg.Logging.Dir = dir
	}

	logCfg := logConfig(cfg)
	events, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer events.Close()

	opLog, err := logging.NewOperational(logCfg, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = opLog.Sync() }()

	runner, err := health.NewRunner(cfg.HealthConfig(), newResolver(cfg), probe.DefaultRegistry(cfg.DNSQuery), health.WithLogger(opLog))
	if err != nil {
		opLog.Error("runner_init_failed", zap.Error(err))
		return err
	}

	var tracer *traceroute.Tracer
	if cfg.Traceroute.Enabled {
		tracer = traceroute.New(traceroute.Config{
			MaxHops: cfg.Traceroute.MaxHops,
			Timeout: time.Duration(cfg.Traceroute.TimeoutMS) * time.Millisecond,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opLog.Info("session_start",
		zap.String("config", path),
		zap.Int("battery", len(cfg.Battery)),
		zap.Duration("timeout", cfg.Timeout()),
	)

	a := &app{
		in:     os.Stdin,
		out:    os.Stdout,
		checks: runner,
		events: events,
		log:    opLog,
		tracer: tracer,
	}
	err = a.loop(ctx)
	opLog.Info("session_end", zap.Error(err))
	return err
}

func logConfig(cfg config.Config) logging.Config {
	hostID, err := os.Hostname()
	if err != nil || hostID == "" {
		hostID = "unknown"
	}
	return logging.Config{
		Dir:         cfg.Logging.Dir,
		MaxMB:       cfg.Logging.MaxMB,
		MaxFiles:    cfg.Logging.MaxFiles,
		ToolName:    "netdiag",
		ToolVersion: version,
		HostID:      hostID,
	}
}

func newResolver(cfg config.Config) resolve.Resolver {
	if cfg.Resolver == "dns" {
		return resolve.NewDNSResolver(cfg.Nameserver, cfg.Network, cfg.Timeout())
	}
	return resolve.NewSystemResolver(cfg.Network, cfg.Timeout())
}
