package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOpportunitiesValid(t *testing.T) {
	content := `{"instrumentation_opportunities": [
		{"job_code": "M-101", "job_description": "Flow metering for water main", "match_confidence": 85},
		{"job_code": "E-200", "job_description": "SCADA integration", "job_size": "medium"}
	]}`

	res := ParseOpportunities(content, nil)
	require.Empty(t, res.Reason)
	require.Len(t, res.Opportunities, 2)

	assert.Equal(t, "M-101", res.Opportunities[0].JobCode)
	require.NotNil(t, res.Opportunities[0].MatchConfidence)
	assert.Equal(t, 85, *res.Opportunities[0].MatchConfidence)
	assert.Equal(t, "medium", res.Opportunities[1].JobSize)
	assert.Nil(t, res.Opportunities[1].MatchConfidence)
}

func TestParseOpportunitiesCodeFenced(t *testing.T) {
	content := "```json\n{\"instrumentation_opportunities\": [{\"job_code\": \"P-7\"}]}\n```"

	res := ParseOpportunities(content, nil)
	require.Empty(t, res.Reason)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "P-7", res.Opportunities[0].JobCode)
}

func TestParseOpportunitiesEmptyContent(t *testing.T) {
	res := ParseOpportunities("   ", nil)
	assert.True(t, res.Empty())
	assert.NotEmpty(t, res.Reason)
}

func TestParseOpportunitiesInvalidJSON(t *testing.T) {
	res := ParseOpportunities("I could not find any opportunities in this document.", nil)
	assert.True(t, res.Empty())
	assert.Contains(t, res.Reason, "invalid JSON")
}

func TestParseOpportunitiesSkipsNonObjectEntries(t *testing.T) {
	content := `{"instrumentation_opportunities": [
		"just a string",
		{"job_code": "C-3"},
		42
	]}`

	res := ParseOpportunities(content, nil)
	require.Empty(t, res.Reason)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "C-3", res.Opportunities[0].JobCode)
}

func TestParseOpportunitiesEmptyListIsUsable(t *testing.T) {
	res := ParseOpportunities(`{"instrumentation_opportunities": []}`, nil)
	assert.Empty(t, res.Reason)
	assert.True(t, res.Empty())
}

func TestSanitizeDropsUnknownNullAndEmpty(t *testing.T) {
	m := map[string]any{
		"job_code":        "A-1",
		"job_description": "   ",
		"project_type":    nil,
		"made_up_field":   "x",
	}

	dropped := sanitizeOpportunity(m)

	assert.Equal(t, map[string]any{"job_code": "A-1"}, m)
	assert.Len(t, dropped, 3)
}

func TestSanitizeStringifiesNumbers(t *testing.T) {
	m := map[string]any{"job_code": float64(4210)}

	sanitizeOpportunity(m)

	assert.Equal(t, "4210", m["job_code"])
}

func TestCoerceConfidence(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{"number", float64(72), 72, true},
		{"numeric string", "64", 64, true},
		{"percent suffix", "85%", 85, true},
		{"above range", float64(150), 100, true},
		{"below range", float64(-5), 0, true},
		{"garbage string", "high", 0, false},
		{"bool", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := coerceConfidence(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
