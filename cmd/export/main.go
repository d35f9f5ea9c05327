package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/h2g-data/bidscan/internal/common"
	"github.com/h2g-data/bidscan/internal/export"
	"github.com/h2g-data/bidscan/internal/repository"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		out        = flag.String("out", "opportunities.xlsx", "output XLSX file path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := export.NewService(repository.NewOpportunityRepository(pool, logger), logger)
	data, err := svc.ExportOpportunitiesXLSX(ctx)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write output file", "file", *out, "error", err)
		os.Exit(1)
	}
	color.Green("wrote %s (%d bytes)", *out, len(data))
}
