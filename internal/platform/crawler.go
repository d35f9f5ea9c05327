package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/h2g-data/bidscan/constants"
	"github.com/h2g-data/bidscan/internal/entity"
	"github.com/h2g-data/bidscan/internal/repository"
)

const searchPageSize = 100

// Crawler walks the vendor platform for matching projects, stores each
// project's document tree, and downloads its documents into object storage.
type Crawler struct {
	client     *Client
	downloader *Downloader
	docs       repository.DocumentRepository
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewCrawler(client *Client, downloader *Downloader, docs repository.DocumentRepository, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		client:     client,
		downloader: downloader,
		docs:       docs,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// CrawlTotals summarizes one crawl run.
type CrawlTotals struct {
	ProjectsSeen   int
	ProjectsStored int
	Downloaded     int
	Failed         int
}

// Crawl searches each term page by page and ingests every project not yet in
// project_documents. Pacing between projects keeps the platform from rate
// limiting the account.
func (c *Crawler) Crawl(ctx context.Context, searchTerms []string, minMatches int) (CrawlTotals, error) {
	var totals CrawlTotals

	for _, term := range searchTerms {
		offset := 0
		for {
			if err := ctx.Err(); err != nil {
				return totals, err
			}

			res, err := c.client.SearchProjects(ctx, searchPageSize, offset, term, minMatches)
			if err != nil {
				return totals, fmt.Errorf("search %q: %w", term, err)
			}
			totals.ProjectsSeen += len(res.Docs)

			candidates := make([]string, 0, len(res.Docs))
			for _, p := range res.Docs {
				if id := p.CrimsonID(); id != "" {
					candidates = append(candidates, id)
				}
			}
			missing, err := c.docs.MissingCrimsonIDs(ctx, candidates)
			if err != nil {
				return totals, fmt.Errorf("diff stored projects: %w", err)
			}
			c.logger.Info("crawl.page", "term", term, "offset", offset, "hits", len(res.Docs), "new", len(missing))

			for _, crimsonID := range missing {
				if err := ctx.Err(); err != nil {
					return totals, err
				}
				if err := c.ingestProject(ctx, crimsonID, &totals); err != nil {
					totals.Failed++
					c.logger.Error("crawl.project_failed", "crimson_id", crimsonID, "error", err)
				}
				pause := 2*time.Second + time.Duration(rand.Int63n(int64(8*time.Second)))
				if err := c.sleep(ctx, pause); err != nil {
					return totals, err
				}
			}

			if len(res.Docs) < searchPageSize {
				break
			}
			offset += searchPageSize
			if err := c.sleep(ctx, 7*time.Second); err != nil {
				return totals, err
			}
		}
	}

	c.logger.Info("crawl.done",
		"seen", totals.ProjectsSeen,
		"stored", totals.ProjectsStored,
		"downloaded", totals.Downloaded,
		"failed", totals.Failed,
	)
	return totals, nil
}

// ingestProject resolves one crimson id, stores its document tree, and
// downloads every leaf document.
func (c *Crawler) ingestProject(ctx context.Context, crimsonID string, totals *CrawlTotals) error {
	info, err := c.client.InitProjectInformation(ctx, crimsonID)
	if err != nil {
		return err
	}
	projectID := info.ProjectID.String()

	pd, err := c.client.FetchDocumentTree(ctx, projectID, crimsonID)
	if err != nil {
		return err
	}
	if err := c.docs.UpsertProjectDocuments(ctx, *pd); err != nil {
		return err
	}
	totals.ProjectsStored++

	pidNum, err := strconv.ParseInt(projectID, 10, 64)
	if err != nil {
		return fmt.Errorf("non-numeric project id %q", projectID)
	}

	for _, category := range []struct {
		docType constants.DocumentType
		raw     []byte
	}{
		{constants.DocPlans, pd.Plans},
		{constants.DocSpecs, pd.Specs},
		{constants.DocAddenda, pd.Addenda},
		{constants.DocOther, pd.Other},
	} {
		if category.raw == nil {
			continue
		}
		var node DocumentNode
		if err := json.Unmarshal(category.raw, &node); err != nil {
			c.logger.Warn("crawl.subtree_undecodable", "project_id", projectID, "type", category.docType)
			continue
		}
		for _, leaf := range node.Leaves() {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := c.downloader.Download(ctx, string(category.docType), leaf.DocumentID.String(), projectID, leaf.DisplayName)
			s3Path := "NA"
			if err != nil {
				c.logger.Error("crawl.download_failed",
					"project_id", projectID,
					"document_id", leaf.DocumentID,
					"error", err,
				)
			} else {
				s3Path = result.S3Path
				totals.Downloaded++
			}
			if err := c.docs.Insert(ctx, entity.BidDocument{
				ProjectID:    pidNum,
				DocumentType: string(category.docType),
				DocumentID:   leaf.DocumentID.String(),
				DisplayName:  leaf.DisplayName,
				S3Path:       s3Path,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
