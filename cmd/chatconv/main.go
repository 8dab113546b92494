package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/you/gnasty-chatconv/internal/config"
	"github.com/you/gnasty-chatconv/internal/converter"
	"github.com/you/gnasty-chatconv/internal/metrics"
	"github.com/you/gnasty-chatconv/internal/sink"
	"github.com/you/gnasty-chatconv/internal/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chatconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: chatconv [flags] <input.txt>\n\n")
		fs.PrintDefaults()
	}

	var (
		versionFlag  bool
		configPath   string
		channel      string
		outPath      string
		dbPath       string
		metricsFile  string
		watch        bool
		dropLogEvery int
		logFormat    string
		logLevel     string
	)

	fs.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	fs.StringVar(&configPath, "config", "", "Path to YAML config file (default $"+config.EnvConfigPath+")")
	fs.StringVar(&channel, "channel", "forsen", "Channel whose messages are extracted (without #)")
	fs.StringVar(&outPath, "out", "", "Output path (default: input with .txt replaced by _new.json)")
	fs.StringVar(&dbPath, "sqlite", "", "Also archive comments into this SQLite database")
	fs.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after each run")
	fs.BoolVar(&watch, "watch", false, "Keep running and convert again whenever the input changes")
	fs.IntVar(&dropLogEvery, "drop-log-every", 1, "Log only every Nth dropped line (a summary is always logged)")
	fs.StringVar(&logFormat, "log-format", "auto", "Log format: auto, text or json")
	fs.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	if versionFlag {
		fmt.Fprintf(stdout,
			"chatconv version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		return exitOK
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "chatconv: expected exactly one input file, got %d\n", fs.NArg())
		fs.Usage()
		return exitUsage
	}
	input := fs.Arg(0)

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(stderr, "chatconv: %v\n", err)
		return exitError
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "chatconv: config: %v\n", err)
		return exitError
	}

	overrides := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})
	if overrides["channel"] {
		cfg.Channel = channel
	}
	if overrides["out"] {
		cfg.Output = strings.TrimSpace(outPath)
	}
	if overrides["sqlite"] {
		cfg.SQLite.Path = strings.TrimSpace(dbPath)
	}
	if overrides["metrics-file"] {
		cfg.MetricsFile = strings.TrimSpace(metricsFile)
	}
	if overrides["watch"] {
		cfg.Watch = watch
	}
	if overrides["drop-log-every"] {
		cfg.DropLogEvery = dropLogEvery
	}
	if overrides["log-format"] {
		cfg.Log.Format = logFormat
	}
	if overrides["log-level"] {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "chatconv: %v\n", err)
		return exitUsage
	}

	logger := newLogger(stderr, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Debug("chatconv: config", "summary", string(cfg.SummaryJSON()))

	opts := converter.Options{
		Channel:      cfg.Channel,
		Output:       cfg.Output,
		DropLogEvery: cfg.DropLogEvery,
		BatchSize:    cfg.SQLite.BatchSize,
		MetricsFile:  cfg.MetricsFile,
		Logger:       logger,
	}
	if cfg.MetricsFile != "" {
		opts.Metrics = metrics.New()
	}
	if cfg.SQLite.Path != "" {
		archive, err := sink.OpenSQLite(ctx, cfg.SQLite.Path, cfg.SQLite.Tuning)
		if err != nil {
			logger.Error("chatconv: open archive", "path", cfg.SQLite.Path, "err", err)
			return exitError
		}
		defer archive.Close()
		opts.Archive = archive
	}

	conv := converter.New(opts)
	if cfg.Watch {
		if err := conv.Watch(ctx, input); err != nil {
			logger.Error("chatconv: watch", "input", input, "err", err)
			return exitError
		}
		return exitOK
	}

	if _, err := conv.Run(ctx, input); err != nil {
		logger.Error("chatconv: conversion failed", "input", input, "err", err)
		return exitError
	}
	return exitOK
}
