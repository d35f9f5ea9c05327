package llm

import (
	"math"
	"strconv"
	"strings"
)

var allowedKeys = map[string]struct{}{
	"job_code": {}, "job_description": {}, "job_summary": {}, "job_size": {},
	"monitoring_frequency": {}, "match_confidence": {}, "contract_value_range": {},
	"submission_deadline": {}, "licensing_requirements": {}, "technical_complexity": {},
	"project_location": {}, "contract_duration": {}, "insurance_requirements": {},
	"equipment_needed": {}, "compliance_standards": {}, "reporting_requirements": {},
	"project_type": {},
}

// sanitizeOpportunity normalizes one raw opportunity object in place:
// - drops nulls and keys outside the contract
// - trims strings, dropping the ones that trim to empty
// - coerces match_confidence from number or numeric string to a clamped int
// Returns the keys it dropped, for logging.
func sanitizeOpportunity(m map[string]any) []string {
	var dropped []string

	for k, v := range m {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		if v == nil {
			delete(m, k)
			dropped = append(dropped, k+"(null)")
			continue
		}
		if k == "match_confidence" {
			continue
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		case float64:
			// numeric where a string belongs; stringify rather than lose it
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	if v, ok := m["match_confidence"]; ok {
		if n, ok := coerceConfidence(v); ok {
			m["match_confidence"] = n
		} else {
			delete(m, "match_confidence")
			dropped = append(dropped, "match_confidence(unparseable)")
		}
	}

	return dropped
}

// coerceConfidence accepts a JSON number or a numeric string and clamps the
// result into [0,100].
func coerceConfidence(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return clampConfidence(int(t)), true
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clampConfidence(int(f)), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func clampConfidence(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
