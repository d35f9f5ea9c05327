package llm

import "context"

// Opportunity is one instrumentation opportunity extracted from bid-document
// text. Field names follow the completion JSON contract; normalization into
// a persistence row happens in the row mapper, not here.
type Opportunity struct {
	JobCode               string `json:"job_code,omitempty"`
	JobDescription        string `json:"job_description,omitempty"`
	JobSummary            string `json:"job_summary,omitempty"`
	JobSize               string `json:"job_size,omitempty"`
	MonitoringFrequency   string `json:"monitoring_frequency,omitempty"`
	MatchConfidence       *int   `json:"match_confidence,omitempty"`
	ContractValueRange    string `json:"contract_value_range,omitempty"`
	SubmissionDeadline    string `json:"submission_deadline,omitempty"`
	LicensingRequirements string `json:"licensing_requirements,omitempty"`
	TechnicalComplexity   string `json:"technical_complexity,omitempty"`
	ProjectLocation       string `json:"project_location,omitempty"`
	ContractDuration      string `json:"contract_duration,omitempty"`
	InsuranceRequirements string `json:"insurance_requirements,omitempty"`
	EquipmentNeeded       string `json:"equipment_needed,omitempty"`
	ComplianceStandards   string `json:"compliance_standards,omitempty"`
	ReportingRequirements string `json:"reporting_requirements,omitempty"`
	ProjectType           string `json:"project_type,omitempty"`
}

// Options tunes a single completion call.
type Options struct {
	MaxCompletionTokens int
	ReasoningEffort     string
	Verbosity           string
}

// CompletionService is the external text-generation oracle the pipeline
// depends on. It is fallible, slow, and non-deterministic; callers own
// retries and pacing.
type CompletionService interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}
