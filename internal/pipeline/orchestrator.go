package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/h2g-data/bidscan/internal/llm"
	"github.com/h2g-data/bidscan/internal/merge"
	"github.com/h2g-data/bidscan/internal/pdfdoc"
	"github.com/h2g-data/bidscan/internal/textseg"
)

// Settings tunes one orchestrator. Zero values fall back to pipeline
// defaults.
type Settings struct {
	MaxChunkBytes   int
	PerCallMaxChars int
	Segmentation    textseg.Config
	RetryAttempts   int
}

func (s Settings) withDefaults() Settings {
	if s.MaxChunkBytes <= 0 {
		s.MaxChunkBytes = pdfdoc.DefaultMaxChunkBytes
	}
	if s.PerCallMaxChars <= 0 {
		s.PerCallMaxChars = textseg.DefaultMaxChars
	}
	if s.RetryAttempts <= 0 {
		s.RetryAttempts = defaultRetryAttempts
	}
	return s
}

// openDocument exists so tests can substitute synthetic documents for real
// PDF parsing.
type openDocument func(data []byte) (pdfdoc.Document, error)

// extractText mirrors pdfdoc.ExtractText's tolerant contract: never an
// error, the sentinel string when nothing is recoverable.
type extractText func(data []byte, logger *slog.Logger) string

// Orchestrator drives one document through chunking, text extraction,
// segmentation, completion calls and merging. It holds no per-document
// state, so one instance serves a whole batch.
type Orchestrator struct {
	completions llm.CompletionService
	merger      *merge.Merger
	limiter     *rate.Limiter
	settings    Settings
	prompt      string
	opts        llm.Options
	logger      *slog.Logger

	open    openDocument
	extract extractText
}

func NewOrchestrator(
	completions llm.CompletionService,
	merger *merge.Merger,
	limiter *rate.Limiter,
	settings Settings,
	prompt string,
	opts llm.Options,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		completions: completions,
		merger:      merger,
		limiter:     limiter,
		settings:    settings.withDefaults(),
		prompt:      prompt,
		opts:        opts,
		logger:      logger,
		open: func(data []byte) (pdfdoc.Document, error) {
			return pdfdoc.Open(data)
		},
		extract: pdfdoc.ExtractText,
	}
}

// ExtractOpportunities runs the full pipeline over one document's bytes and
// returns the merged opportunity list. Completion failures that survive the
// retry budget fail the whole document; malformed completion content does
// not, it degrades to an empty contribution.
func (o *Orchestrator) ExtractOpportunities(ctx context.Context, data []byte) ([]llm.Opportunity, error) {
	doc, err := o.open(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	chunks, err := pdfdoc.Split(doc, o.settings.MaxChunkBytes, o.logger)
	if err != nil {
		return nil, fmt.Errorf("split document: %w", err)
	}

	o.logger.Info("pipeline.start",
		"pages", doc.NumPages(),
		"bytes", doc.ByteSize(),
		"chunks", len(chunks),
	)

	var all []llm.Opportunity
	for i, chunk := range chunks {
		opps, err := o.processChunk(ctx, chunk, i+1, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		all = append(all, opps...)
	}

	merged := o.merger.Merge(ctx, all)
	o.logger.Info("pipeline.done", "extracted", len(all), "merged", len(merged))
	return merged, nil
}

// processChunk extracts a chunk's text and turns it into opportunities,
// splitting oversized text across multiple completion calls.
func (o *Orchestrator) processChunk(ctx context.Context, chunk pdfdoc.Chunk, idx, total int) ([]llm.Opportunity, error) {
	text := o.extract(chunk.Data, o.logger)

	o.logger.Info("pipeline.chunk",
		"chunk", idx,
		"of", total,
		"pages", chunk.Pages(),
		"chars", len(text),
	)

	if len(text) <= o.settings.PerCallMaxChars {
		prompt := llm.BuildDocumentPrompt(o.prompt, text)
		opps, err := o.complete(ctx, prompt, fmt.Sprintf("chunk %d", idx))
		if err != nil {
			return nil, err
		}
		return o.merger.Merge(ctx, opps), nil
	}

	seg := textseg.Segment(text, o.settings.Segmentation, o.logger)
	if seg.Truncated {
		o.logger.Warn("pipeline.chunk_truncated", "chunk", idx, "segments", len(seg.Segments))
	}

	var opps []llm.Opportunity
	for si, s := range seg.Segments {
		prompt := llm.BuildSegmentPrompt(o.prompt, s, si+1, len(seg.Segments), idx, total)
		part, err := o.complete(ctx, prompt, fmt.Sprintf("chunk %d segment %d", idx, si+1))
		if err != nil {
			return nil, err
		}
		opps = append(opps, part...)
	}
	return o.merger.Merge(ctx, opps), nil
}

// complete issues one rate-limited, retried completion call and parses the
// response. Unusable content is logged and contributes nothing.
func (o *Orchestrator) complete(ctx context.Context, prompt, op string) ([]llm.Opportunity, error) {
	var content string
	err := withRetry(ctx, o.settings.RetryAttempts, op, o.logger, func() error {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var callErr error
		content, callErr = o.completions.Complete(ctx, prompt, o.opts)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	res := llm.ParseOpportunities(content, o.logger)
	if res.Reason != "" {
		o.logger.Warn("pipeline.unusable_completion", "op", op, "reason", res.Reason)
	}
	return res.Opportunities, nil
}
