package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/h2g-data/bidscan/internal/common"
	"github.com/h2g-data/bidscan/internal/platform"
	"github.com/h2g-data/bidscan/internal/repository"
	"github.com/h2g-data/bidscan/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		terms      = flag.String("search", "", "comma-separated search terms (required)")
		minMatches = flag.Int("min-matches", 2, "minimum matched document count per project")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if strings.TrimSpace(*terms) == "" {
		logger.Error("--search is required")
		os.Exit(1)
	}
	var searchTerms []string
	for _, t := range strings.Split(*terms, ",") {
		if t = strings.TrimSpace(t); t != "" {
			searchTerms = append(searchTerms, t)
		}
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := storage.NewS3Store(ctx, cfg.Storage.Region, logger)
	if err != nil {
		logger.Error("object storage unavailable", "error", err)
		os.Exit(1)
	}

	auth, err := platform.NewAuth(platform.Config{
		Email:       cfg.Platform.Email,
		Password:    cfg.Platform.Password,
		LoginURL:    cfg.Platform.LoginURL,
		AppURL:      cfg.Platform.AppURL,
		DownloadURL: cfg.Platform.DownloadURL,
		TenantID:    cfg.Platform.TenantID,
		SessionFile: cfg.Platform.SessionFile,
	}, logger)
	if err != nil {
		logger.Error("platform auth setup failed", "error", err)
		os.Exit(1)
	}

	client := platform.NewClient(auth, cfg.Platform.AppURL, logger)
	downloader := platform.NewDownloader(
		auth, store,
		cfg.Storage.DefaultBucket, cfg.Storage.DefaultPrefix,
		cfg.Platform.DownloadURL,
		logger,
	)
	docs := repository.NewDocumentRepository(pool, logger)

	crawler := platform.NewCrawler(client, downloader, docs, logger)
	totals, err := crawler.Crawl(ctx, searchTerms, *minMatches)
	if err != nil && ctx.Err() == nil {
		logger.Error("crawl failed", "error", err)
		os.Exit(1)
	}

	color.Green("projects seen:   %d", totals.ProjectsSeen)
	color.Green("projects stored: %d", totals.ProjectsStored)
	color.Green("docs downloaded: %d", totals.Downloaded)
	if totals.Failed > 0 {
		color.Red("projects failed: %d", totals.Failed)
	}
}
