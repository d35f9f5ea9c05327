package entity

import "time"

// OpportunityRow is the normalized opportunities row for data transfer
// between layers. All enum fields are already clamped by the row mapper;
// nil pointers map to SQL NULLs.
type OpportunityRow struct {
	ProjectID               int64   `json:"project_id"`
	JobCode                 string  `json:"job_code"` // <= 10 chars
	JobDescription          string  `json:"job_description"`
	JobSummary              string  `json:"job_summary"`
	JobSize                 string  `json:"job_size"`
	Frequency               string  `json:"frequency"` // <= 255 chars
	MatchConfidence         *int    `json:"match_confidence,omitempty"`
	ContractValueRange      string  `json:"contract_value_range"`
	SubmissionDeadline      string  `json:"submission_deadline"` // <= 255 chars
	LicensingRequirements   *string `json:"licensing_requirements,omitempty"`
	TechnicalComplexity     string  `json:"technical_complexity"`
	ProjectLocation         string  `json:"project_location"`  // <= 255 chars
	ContractDuration        string  `json:"contract_duration"` // <= 255 chars
	InsuranceRequirements   *string `json:"insurance_requirements,omitempty"`
	EquipmentSpecifications *string `json:"equipment_specifications,omitempty"`
	ComplianceStandards     *string `json:"compliance_standards,omitempty"`
	ReportingRequirements   *string `json:"reporting_requirements,omitempty"`
	ProjectType             string  `json:"project_type"`
}

// StoredOpportunity is an opportunities row read back for export.
type StoredOpportunity struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	OpportunityRow
}
