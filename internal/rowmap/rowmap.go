package rowmap

import (
	"strings"

	"github.com/h2g-data/bidscan/constants"
	"github.com/h2g-data/bidscan/internal/entity"
	"github.com/h2g-data/bidscan/internal/llm"
)

const (
	jobCodeMax   = 10
	shortTextMax = 255
)

// ToRow normalizes one extracted opportunity into an insertable row. It never
// fails: every field degrades to a documented default rather than rejecting
// the record, because a partially-filled row beats a dropped extraction.
func ToRow(projectID int64, projectKey string, o llm.Opportunity) entity.OpportunityRow {
	return entity.OpportunityRow{
		ProjectID:               projectID,
		JobCode:                 jobCode(o.JobCode, projectKey),
		JobDescription:          defaultText(o.JobDescription),
		JobSummary:              defaultText(o.JobSummary),
		JobSize:                 string(constants.NormalizeJobSize(o.JobSize)),
		Frequency:               truncate(defaultText(o.MonitoringFrequency), shortTextMax),
		MatchConfidence:         clampConfidence(o.MatchConfidence),
		ContractValueRange:      string(constants.NormalizeContractValueRange(o.ContractValueRange)),
		SubmissionDeadline:      truncate(defaultText(o.SubmissionDeadline), shortTextMax),
		LicensingRequirements:   nullable(o.LicensingRequirements),
		TechnicalComplexity:     string(constants.NormalizeTechnicalComplexity(o.TechnicalComplexity)),
		ProjectLocation:         truncate(defaultText(o.ProjectLocation), shortTextMax),
		ContractDuration:        truncate(defaultText(o.ContractDuration), shortTextMax),
		InsuranceRequirements:   nullable(o.InsuranceRequirements),
		EquipmentSpecifications: nullable(o.EquipmentNeeded),
		ComplianceStandards:     nullable(o.ComplianceStandards),
		ReportingRequirements:   nullable(o.ReportingRequirements),
		ProjectType:             projectType(o.ProjectType),
	}
}

// jobCode truncates the extracted code to the column width, falling back to
// a prefix of the project key when the model returned none.
func jobCode(code, projectKey string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		code = projectKey
	}
	return truncate(code, jobCodeMax)
}

func projectType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "General"
	}
	return truncate(s, shortTextMax)
}

func defaultText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return constants.NotSpecified
	}
	return s
}

// nullable keeps genuinely optional columns as SQL NULL when blank.
func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = truncate(s, shortTextMax)
	return &s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clampConfidence(p *int) *int {
	if p == nil {
		return nil
	}
	n := *p
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	return &n
}
