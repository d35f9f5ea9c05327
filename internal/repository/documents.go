package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/h2g-data/bidscan/internal/common"
	"github.com/h2g-data/bidscan/internal/entity"
)

type DocumentRepository interface {
	// FetchBatch pages through bid documents in stable project order.
	FetchBatch(ctx context.Context, limit, offset int) ([]entity.BidDocument, error)
	Insert(ctx context.Context, doc entity.BidDocument) error
	IncrementRetry(ctx context.Context, projectID int64, documentID string) error
	// UpsertProjectDocuments stores the crawled document tree per project.
	UpsertProjectDocuments(ctx context.Context, pd entity.ProjectDocuments) error
	// MissingCrimsonIDs filters candidates down to the ones without a stored
	// document tree, preserving input order.
	MissingCrimsonIDs(ctx context.Context, candidates []string) ([]string, error)
}

type documentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, logger *slog.Logger) DocumentRepository {
	return &documentRepository{pool: pool, logger: logger}
}

func (r *documentRepository) FetchBatch(ctx context.Context, limit, offset int) ([]entity.BidDocument, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT project_id, document_type, document_id, display_name, s3_path,
		       retry_count, created_at
		FROM bid_documents
		ORDER BY project_id, document_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "query bid documents", err)
	}
	defer rows.Close()

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.BidDocument, error) {
		var d entity.BidDocument
		err := row.Scan(&d.ProjectID, &d.DocumentType, &d.DocumentID, &d.DisplayName,
			&d.S3Path, &d.RetryCount, &d.CreatedAt)
		return d, err
	})
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "scan bid documents", err)
	}
	return docs, nil
}

func (r *documentRepository) Insert(ctx context.Context, doc entity.BidDocument) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bid_documents (project_id, document_type, document_id, display_name, s3_path)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, document_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, s3_path = EXCLUDED.s3_path`,
		doc.ProjectID, doc.DocumentType, doc.DocumentID, doc.DisplayName, doc.S3Path)
	if err != nil {
		return common.NewAppError("DB_ERROR", "insert bid document", err)
	}
	return nil
}

func (r *documentRepository) IncrementRetry(ctx context.Context, projectID int64, documentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bid_documents SET retry_count = retry_count + 1
		WHERE project_id = $1 AND document_id = $2`, projectID, documentID)
	if err != nil {
		return common.NewAppError("DB_ERROR", "increment retry count", err)
	}
	return nil
}

func (r *documentRepository) UpsertProjectDocuments(ctx context.Context, pd entity.ProjectDocuments) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO project_documents (project_id, crimson_id, plans, specs, addenda, other, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (project_id) DO UPDATE
		SET crimson_id = EXCLUDED.crimson_id,
		    plans = EXCLUDED.plans,
		    specs = EXCLUDED.specs,
		    addenda = EXCLUDED.addenda,
		    other = EXCLUDED.other,
		    updated_at = now()`,
		pd.ProjectID, pd.CrimsonID, pd.Plans, pd.Specs, pd.Addenda, pd.Other)
	if err != nil {
		return common.NewAppError("DB_ERROR", "upsert project documents", err)
	}
	return nil
}

func (r *documentRepository) MissingCrimsonIDs(ctx context.Context, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT crimson_id FROM project_documents WHERE crimson_id = ANY($1)`, candidates)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "query stored crimson ids", err)
	}
	defer rows.Close()

	stored := make(map[string]struct{}, len(candidates))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan crimson id", err)
		}
		stored[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate crimson ids", err)
	}

	var missing []string
	for _, id := range candidates {
		if _, ok := stored[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
