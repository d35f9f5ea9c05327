package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/h2g-data/bidscan/internal/common"
	"github.com/h2g-data/bidscan/internal/entity"
)

type OpportunityRepository interface {
	// ExistingProjectIDs returns the set of project ids that already have at
	// least one opportunity row, so the batch runner can skip them.
	ExistingProjectIDs(ctx context.Context) (map[int64]struct{}, error)
	// Insert stores one normalized row. Returns false when the insert failed
	// even after a reconnect retry; the caller decides whether that fails the
	// document.
	Insert(ctx context.Context, row entity.OpportunityRow) bool
	List(ctx context.Context, limit, offset int) ([]entity.StoredOpportunity, error)
}

type opportunityRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewOpportunityRepository(pool *pgxpool.Pool, logger *slog.Logger) OpportunityRepository {
	return &opportunityRepository{pool: pool, logger: logger}
}

func (r *opportunityRepository) ExistingProjectIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT project_id FROM opportunities`)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "query existing project ids", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan project id", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate project ids", err)
	}
	return ids, nil
}

const insertOpportunitySQL = `
INSERT INTO opportunities (
	project_id, job_code, job_description, job_summary, job_size,
	frequency, match_confidence, contract_value_range, submission_deadline,
	licensing_requirements, technical_complexity, project_location,
	contract_duration, insurance_requirements, equipment_specifications,
	compliance_standards, reporting_requirements, project_type
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
)`

// Insert writes one row, pinging and retrying once on failure so a dropped
// connection in the middle of a long batch does not lose the extraction.
func (r *opportunityRepository) Insert(ctx context.Context, row entity.OpportunityRow) bool {
	if err := r.exec(ctx, row); err == nil {
		return true
	} else {
		r.logger.Warn("repo.opportunity.insert_retry", "project_id", row.ProjectID, "error", err)
	}

	if err := r.pool.Ping(ctx); err != nil {
		r.logger.Error("repo.opportunity.ping_failed", "error", err)
		return false
	}
	if err := r.exec(ctx, row); err != nil {
		r.logger.Error("repo.opportunity.insert_failed", "project_id", row.ProjectID, "error", err)
		return false
	}
	return true
}

func (r *opportunityRepository) exec(ctx context.Context, row entity.OpportunityRow) error {
	_, err := r.pool.Exec(ctx, insertOpportunitySQL,
		row.ProjectID, row.JobCode, row.JobDescription, row.JobSummary, row.JobSize,
		row.Frequency, row.MatchConfidence, row.ContractValueRange, row.SubmissionDeadline,
		row.LicensingRequirements, row.TechnicalComplexity, row.ProjectLocation,
		row.ContractDuration, row.InsuranceRequirements, row.EquipmentSpecifications,
		row.ComplianceStandards, row.ReportingRequirements, row.ProjectType,
	)
	return err
}

func (r *opportunityRepository) List(ctx context.Context, limit, offset int) ([]entity.StoredOpportunity, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, created_at, project_id, job_code, job_description, job_summary,
		       job_size, frequency, match_confidence, contract_value_range,
		       submission_deadline, licensing_requirements, technical_complexity,
		       project_location, contract_duration, insurance_requirements,
		       equipment_specifications, compliance_standards, reporting_requirements,
		       project_type
		FROM opportunities
		ORDER BY id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "query opportunities", err)
	}
	defer rows.Close()

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.StoredOpportunity, error) {
		var o entity.StoredOpportunity
		err := row.Scan(
			&o.ID, &o.CreatedAt, &o.ProjectID, &o.JobCode, &o.JobDescription, &o.JobSummary,
			&o.JobSize, &o.Frequency, &o.MatchConfidence, &o.ContractValueRange,
			&o.SubmissionDeadline, &o.LicensingRequirements, &o.TechnicalComplexity,
			&o.ProjectLocation, &o.ContractDuration, &o.InsuranceRequirements,
			&o.EquipmentSpecifications, &o.ComplianceStandards, &o.ReportingRequirements,
			&o.ProjectType,
		)
		return o, err
	})
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "scan opportunities", err)
	}
	return out, nil
}
