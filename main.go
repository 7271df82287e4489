// Package main is the entry point for the moniclear command line tracker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/yelinaung/moniclear/internal/cli"
	"gitlab.com/yelinaung/moniclear/internal/config"
	"gitlab.com/yelinaung/moniclear/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}
	logger.SetLevel(cfg.LogLevel)
	if err := logger.InitHashSalt(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize log hashing")
	}

	app := cli.NewApp(cfg, version+" (commit: "+commit+", built: "+date+")")
	status := cli.Run(ctx, app, os.Args[1:])
	stop()
	os.Exit(int(status))
}
