package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/time/rate"

	"github.com/h2g-data/bidscan/internal/batch"
	"github.com/h2g-data/bidscan/internal/common"
	"github.com/h2g-data/bidscan/internal/llm"
	"github.com/h2g-data/bidscan/internal/llm/openai"
	"github.com/h2g-data/bidscan/internal/merge"
	"github.com/h2g-data/bidscan/internal/pipeline"
	"github.com/h2g-data/bidscan/internal/repository"
	"github.com/h2g-data/bidscan/internal/storage"
	"github.com/h2g-data/bidscan/internal/textseg"
)

func main() {
	var (
		configPath  = flag.String("config", "", "optional YAML config file")
		offset      = flag.Int("offset", 0, "starting offset into bid_documents")
		batchSize   = flag.Int("batch-size", 0, "documents per batch (default from config)")
		maxProjects = flag.Int("max-projects", 0, "stop after this many projects (0 = unlimited)")
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
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := &llm.PromptLoader{
		Primary:    cfg.LLM.PromptFile,
		Alternates: []string{"prompt.txt", "bid_prompt.txt"},
		MergeFile:  cfg.LLM.MergePromptFile,
		Logger:     logger,
	}
	prompt, err := loader.LoadExtractionPrompt()
	if err != nil {
		logger.Error("extraction prompt unavailable", "error", err)
		os.Exit(1)
	}
	mergePrompt, _ := loader.LoadMergePrompt()

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

	completions := openai.NewClient(openai.Config{
		BaseURL:             cfg.LLM.BaseURL,
		APIKey:              cfg.LLM.APIKey,
		Model:               cfg.LLM.Model,
		MaxCompletionTokens: cfg.LLM.MaxCompletionTokens,
		ReasoningEffort:     cfg.LLM.ReasoningEffort,
		Verbosity:           cfg.LLM.Verbosity,
		Timeout:             cfg.LLM.Timeout,
	}, logger)

	merger := &merge.Merger{
		Strategy:    merge.Strategy(cfg.Pipeline.MergeStrategy),
		Completions: completions,
		MergePrompt: mergePrompt,
		Logger:      logger,
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.LLM.RateLimitPerMin)/60.0), 1)

	orch := pipeline.NewOrchestrator(
		completions,
		merger,
		limiter,
		pipeline.Settings{
			MaxChunkBytes:   cfg.Pipeline.MaxChunkBytes,
			PerCallMaxChars: cfg.Pipeline.PerCallMaxChars,
			Segmentation: textseg.Config{
				MaxChars:  cfg.Pipeline.PerCallMaxChars,
				MinChars:  cfg.Pipeline.SegmentMinChars,
				Overlap:   cfg.Pipeline.SegmentOverlap,
				Backtrack: cfg.Pipeline.SegmentBacktrack,
				MaxSegs:   cfg.Pipeline.MaxSegments,
			},
			RetryAttempts: cfg.Pipeline.RetryAttempts,
		},
		prompt,
		llm.Options{
			MaxCompletionTokens: cfg.LLM.MaxCompletionTokens,
			ReasoningEffort:     cfg.LLM.ReasoningEffort,
			Verbosity:           cfg.LLM.Verbosity,
		},
		logger,
	)

	runner := batch.NewRunner(
		repository.NewDocumentRepository(pool, logger),
		repository.NewOpportunityRepository(pool, logger),
		store,
		orch,
		batch.Pacing{
			CooldownMin:     cfg.Batch.CooldownMin,
			CooldownMax:     cfg.Batch.CooldownMax,
			RetryWait:       cfg.Batch.RetryWait,
			BurstPauseEvery: cfg.Batch.BurstPauseEvery,
			BurstPause:      cfg.Batch.BurstPauseSeconds,
		},
		cfg.Storage.DefaultBucket,
		cfg.Storage.DefaultPrefix,
		logger,
	)

	size := *batchSize
	if size <= 0 {
		size = cfg.Batch.BatchSize
	}

	totals, err := runner.Run(ctx, *offset, size, *maxProjects)
	if err != nil && ctx.Err() == nil {
		logger.Error("batch run failed", "error", err)
		os.Exit(1)
	}
	if ctx.Err() != nil {
		color.Yellow("interrupted; partial totals below")
	}

	color.Green("inserted opportunities: %d", totals.Inserted)
	color.Green("processed projects:     %d", totals.ProcessedProjects)
	if totals.FailedDocs > 0 {
		color.Red("failed documents:       %d", totals.FailedDocs)
	} else {
		fmt.Println("failed documents:       0")
	}
}
