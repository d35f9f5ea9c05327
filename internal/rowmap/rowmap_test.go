package rowmap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2g-data/bidscan/constants"
	"github.com/h2g-data/bidscan/internal/llm"
)

func intPtr(n int) *int { return &n }

func TestToRowEmptyOpportunityGetsDefaults(t *testing.T) {
	row := ToRow(42, "PRJ-2024-0042", llm.Opportunity{})

	assert.Equal(t, int64(42), row.ProjectID)
	assert.Equal(t, "PRJ-2024-0", row.JobCode) // project key prefix, 10 chars
	assert.Equal(t, constants.NotSpecified, row.JobDescription)
	assert.Equal(t, "small", row.JobSize)
	assert.Equal(t, constants.NotSpecified, row.Frequency)
	assert.Nil(t, row.MatchConfidence)
	assert.Equal(t, constants.NotSpecified, row.ContractValueRange)
	assert.Equal(t, constants.NotSpecified, row.TechnicalComplexity)
	assert.Nil(t, row.LicensingRequirements)
	assert.Nil(t, row.InsuranceRequirements)
	assert.Nil(t, row.EquipmentSpecifications)
	assert.Nil(t, row.ComplianceStandards)
	assert.Nil(t, row.ReportingRequirements)
	assert.Equal(t, "General", row.ProjectType)
}

func TestToRowTruncatesLongFields(t *testing.T) {
	long := strings.Repeat("x", 300)
	row := ToRow(1, "p", llm.Opportunity{
		JobCode:             "INSTRUMENTATION-PKG-7",
		MonitoringFrequency: long,
		SubmissionDeadline:  long,
		ProjectLocation:     long,
		ContractDuration:    long,
	})

	assert.Len(t, row.JobCode, 10)
	assert.Len(t, row.Frequency, 255)
	assert.Len(t, row.SubmissionDeadline, 255)
	assert.Len(t, row.ProjectLocation, 255)
	assert.Len(t, row.ContractDuration, 255)
}

func TestToRowNormalizesEnums(t *testing.T) {
	row := ToRow(1, "p", llm.Opportunity{
		JobSize:             "Enormous",
		TechnicalComplexity: "SPECIALIZED",
		ContractValueRange:  "mega project, well over $50M",
	})

	assert.Equal(t, "small", row.JobSize)
	assert.Equal(t, "specialized", row.TechnicalComplexity)
	assert.Equal(t, "mega (>$50M)", row.ContractValueRange)
}

func TestToRowValueRangeHeuristics(t *testing.T) {
	cases := map[string]string{
		"small":                   "small (<$500K)",
		"Medium ($500K-$5M)":      "medium ($500K-$5M)",
		"large":                   "medium ($500K-$5M)",
		"mega":                    "large ($5M-$50M)",
		"roughly $5M":             "large ($5M-$50M)",
		"somewhere around a lot":  constants.NotSpecified,
		"":                        constants.NotSpecified,
	}
	for in, want := range cases {
		row := ToRow(1, "p", llm.Opportunity{ContractValueRange: in})
		assert.Equal(t, want, row.ContractValueRange, "input %q", in)
	}
}

func TestToRowClampsConfidence(t *testing.T) {
	high := ToRow(1, "p", llm.Opportunity{MatchConfidence: intPtr(150)})
	low := ToRow(1, "p", llm.Opportunity{MatchConfidence: intPtr(-3)})
	ok := ToRow(1, "p", llm.Opportunity{MatchConfidence: intPtr(77)})

	require.NotNil(t, high.MatchConfidence)
	assert.Equal(t, 100, *high.MatchConfidence)
	assert.Equal(t, 0, *low.MatchConfidence)
	assert.Equal(t, 77, *ok.MatchConfidence)
}

func TestToRowKeepsOptionalFields(t *testing.T) {
	row := ToRow(1, "p", llm.Opportunity{
		LicensingRequirements: " TX electrical license ",
		EquipmentNeeded:       "flow meters, data loggers",
	})

	require.NotNil(t, row.LicensingRequirements)
	assert.Equal(t, "TX electrical license", *row.LicensingRequirements)
	require.NotNil(t, row.EquipmentSpecifications)
	assert.Equal(t, "flow meters, data loggers", *row.EquipmentSpecifications)
}
