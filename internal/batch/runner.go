package batch

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/h2g-data/bidscan/internal/entity"
	"github.com/h2g-data/bidscan/internal/llm"
	"github.com/h2g-data/bidscan/internal/repository"
	"github.com/h2g-data/bidscan/internal/rowmap"
	"github.com/h2g-data/bidscan/internal/storage"
)

// Processor turns one document's bytes into extracted opportunities.
// Satisfied by pipeline.Orchestrator.
type Processor interface {
	ExtractOpportunities(ctx context.Context, data []byte) ([]llm.Opportunity, error)
}

// Pacing bounds how hard the runner leans on the completion service.
type Pacing struct {
	CooldownMin     time.Duration // sleep between projects, lower bound
	CooldownMax     time.Duration // upper bound
	RetryWait       time.Duration // pause before the failed-docs retry pass
	BurstPauseEvery int           // longer pause after this many projects
	BurstPause      time.Duration
}

func (p Pacing) withDefaults() Pacing {
	if p.CooldownMin <= 0 {
		p.CooldownMin = 3 * time.Second
	}
	if p.CooldownMax < p.CooldownMin {
		p.CooldownMax = p.CooldownMin + 5*time.Second
	}
	if p.RetryWait <= 0 {
		p.RetryWait = 60 * time.Second
	}
	if p.BurstPauseEvery <= 0 {
		p.BurstPauseEvery = 15
	}
	if p.BurstPause <= 0 {
		p.BurstPause = 20 * time.Second
	}
	return p
}

// Totals summarizes one run.
type Totals struct {
	Inserted          int
	ProcessedProjects int
	FailedDocs        int
}

// Runner walks bid_documents in pages and drives each unprocessed document
// through the extraction pipeline, pacing itself between projects. Documents
// that fail get one more chance in a per-batch retry pass.
type Runner struct {
	docs     repository.DocumentRepository
	opps     repository.OpportunityRepository
	store    storage.BlobStore
	pipeline Processor
	pacing   Pacing
	bucket   string
	prefix   string
	logger   *slog.Logger

	// injectable for tests
	sleep    func(ctx context.Context, d time.Duration) error
	progress bool
}

func NewRunner(
	docs repository.DocumentRepository,
	opps repository.OpportunityRepository,
	store storage.BlobStore,
	pipeline Processor,
	pacing Pacing,
	bucket, prefix string,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		docs:     docs,
		opps:     opps,
		store:    store,
		pipeline: pipeline,
		pacing:   pacing.withDefaults(),
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger,
		sleep:    sleepCtx,
		progress: true,
	}
}

// Run pages from startOffset until the table is exhausted, maxProjects is
// reached, or the context is canceled. Cancellation between documents is
// clean; totals reflect the work actually committed.
func (r *Runner) Run(ctx context.Context, startOffset, batchSize, maxProjects int) (Totals, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var totals Totals
	offset := startOffset
	batchNum := 1

	existing, err := r.opps.ExistingProjectIDs(ctx)
	if err != nil {
		r.logger.Warn("batch.existing_ids_unavailable", "error", err)
		existing = map[int64]struct{}{}
	}

	for {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		docs, err := r.docs.FetchBatch(ctx, batchSize, offset)
		if err != nil {
			return totals, err
		}
		if len(docs) == 0 {
			r.logger.Info("batch.exhausted", "batches", batchNum-1)
			break
		}
		if maxProjects > 0 && totals.ProcessedProjects >= maxProjects {
			r.logger.Info("batch.max_projects_reached", "max", maxProjects)
			break
		}

		r.logger.Info("batch.start", "batch", batchNum, "offset", offset, "docs", len(docs))

		// Refresh per batch so parallel runs do not double-process.
		if ids, err := r.opps.ExistingProjectIDs(ctx); err == nil {
			existing = ids
		} else {
			r.logger.Warn("batch.existing_ids_refresh_failed", "error", err)
		}

		newDocs := docs[:0:0]
		for _, d := range docs {
			if _, done := existing[d.ProjectID]; done {
				continue
			}
			if _, err := storage.ResolvePath(d.S3Path, r.bucket, r.prefix); err != nil {
				continue
			}
			newDocs = append(newDocs, d)
		}
		if len(newDocs) == 0 {
			r.logger.Info("batch.all_processed", "batch", batchNum)
			offset += batchSize
			batchNum++
			continue
		}

		var bar *progressbar.ProgressBar
		if r.progress {
			bar = progressbar.Default(int64(len(newDocs)), "batch "+strconv.Itoa(batchNum))
		}

		var failed []entity.BidDocument
		stop := false
		for _, doc := range newDocs {
			if err := ctx.Err(); err != nil {
				return totals, err
			}
			if maxProjects > 0 && totals.ProcessedProjects >= maxProjects {
				stop = true
				break
			}

			if totals.ProcessedProjects > 0 && totals.ProcessedProjects%r.pacing.BurstPauseEvery == 0 {
				r.logger.Info("batch.burst_pause", "after_projects", totals.ProcessedProjects, "pause", r.pacing.BurstPause)
				if err := r.sleep(ctx, r.pacing.BurstPause); err != nil {
					return totals, err
				}
			}

			inserted, err := r.processDocument(ctx, doc)
			if bar != nil {
				_ = bar.Add(1)
			}
			if err != nil {
				if ctx.Err() != nil {
					return totals, ctx.Err()
				}
				totals.FailedDocs++
				r.logger.Error("batch.document_failed", "project_id", doc.ProjectID, "error", err)
				failed = append(failed, doc)
				continue
			}

			totals.Inserted += inserted
			totals.ProcessedProjects++

			if err := r.sleep(ctx, r.cooldown()); err != nil {
				return totals, err
			}
		}

		if !stop && len(failed) > 0 {
			r.logger.Info("batch.retry_pass", "failed", len(failed), "wait", r.pacing.RetryWait)
			if err := r.sleep(ctx, r.pacing.RetryWait); err != nil {
				return totals, err
			}
			for _, doc := range failed {
				if err := ctx.Err(); err != nil {
					return totals, err
				}
				if maxProjects > 0 && totals.ProcessedProjects >= maxProjects {
					stop = true
					break
				}
				inserted, err := r.processDocument(ctx, doc)
				if err != nil {
					if ctx.Err() != nil {
						return totals, ctx.Err()
					}
					r.logger.Error("batch.retry_failed", "project_id", doc.ProjectID, "error", err)
					continue
				}
				totals.Inserted += inserted
				totals.ProcessedProjects++
			}
		}

		if stop {
			break
		}
		offset += batchSize
		batchNum++
	}

	r.logger.Info("batch.done",
		"inserted", totals.Inserted,
		"projects", totals.ProcessedProjects,
		"failed_docs", totals.FailedDocs,
	)
	return totals, nil
}

// processDocument fetches one document's bytes, extracts opportunities and
// inserts the normalized rows. Returns how many rows landed.
func (r *Runner) processDocument(ctx context.Context, doc entity.BidDocument) (int, error) {
	ref, err := storage.ResolvePath(doc.S3Path, r.bucket, r.prefix)
	if err != nil {
		return 0, err
	}

	data, err := r.store.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return 0, err
	}

	opps, err := r.pipeline.ExtractOpportunities(ctx, data)
	if err != nil {
		return 0, err
	}
	if len(opps) == 0 {
		r.logger.Info("batch.no_opportunities", "project_id", doc.ProjectID)
		return 0, nil
	}

	projectKey := strconv.FormatInt(doc.ProjectID, 10)
	inserted := 0
	for _, opp := range opps {
		row := rowmap.ToRow(doc.ProjectID, projectKey, opp)
		if r.opps.Insert(ctx, row) {
			inserted++
		} else {
			r.logger.Error("batch.insert_failed", "project_id", doc.ProjectID, "job_code", row.JobCode)
		}
	}
	r.logger.Info("batch.inserted", "project_id", doc.ProjectID, "rows", inserted)
	return inserted, nil
}

func (r *Runner) cooldown() time.Duration {
	span := r.pacing.CooldownMax - r.pacing.CooldownMin
	if span <= 0 {
		return r.pacing.CooldownMin
	}
	return r.pacing.CooldownMin + time.Duration(rand.Int63n(int64(span)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
