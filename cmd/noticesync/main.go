// Package main wires together the notice sync service binary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/ajou-notice-sync/internal/config"
	"github.com/JakeFAU/ajou-notice-sync/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Run a single sync, print the new notices as JSON and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *once {
		cfg.Scheduler.Enabled = false
	}

	ctx := context.Background()
	app, err := server.Build(ctx, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}

	if *once {
		os.Exit(runOnce(ctx, app))
	}
	if err := app.Run(ctx); err != nil {
		zap.L().Error("application exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, app *server.App) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = app.Close(context.Background()) }()

	report, err := app.Runner().Run(ctx)
	if err != nil {
		zap.L().Error("sync failed", zap.Error(err))
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report.Records); err != nil {
		zap.L().Error("write records failed", zap.Error(err))
		return 1
	}
	return 0
}
