package llm

// BuildOpportunityListSchema returns the JSON-Schema (draft 2020-12 subset)
// for the completion payload, as a generic map. It is used locally to
// validate sanitized model output; enum clamping is deliberately left to the
// row mapper so a sloppy-but-parseable response still yields data.
func BuildOpportunityListSchema() map[string]any {
	str := map[string]any{"type": "string"}
	props := map[string]any{
		"job_code":               str,
		"job_description":        str,
		"job_summary":            str,
		"job_size":               str,
		"monitoring_frequency":   str,
		"match_confidence":       map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
		"contract_value_range":   str,
		"submission_deadline":    str,
		"licensing_requirements": str,
		"technical_complexity":   str,
		"project_location":       str,
		"contract_duration":      str,
		"insurance_requirements": str,
		"equipment_needed":       str,
		"compliance_standards":   str,
		"reporting_requirements": str,
		"project_type":           str,
	}

	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"instrumentation_opportunities": map[string]any{
				"type":  "array",
				"items": item,
			},
		},
		"required": []string{"instrumentation_opportunities"},
	}
}
