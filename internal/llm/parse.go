package llm

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ParseResult is the outcome of parsing one completion response. A malformed
// response is a recoverable condition: it degrades to an empty result with a
// reason, never an error.
type ParseResult struct {
	Opportunities []Opportunity
	Reason        string // non-empty when the content could not be used
}

// Empty reports whether parsing yielded nothing usable.
func (r ParseResult) Empty() bool { return len(r.Opportunities) == 0 }

// ParseOpportunities extracts the opportunity list from raw completion
// content. The model often-but-not-always returns valid JSON; code fences
// are stripped, non-object list entries skipped, and each surviving object
// sanitized before schema validation.
func ParseOpportunities(content string, logger *slog.Logger) ParseResult {
	if logger == nil {
		logger = slog.Default()
	}

	content = stripCodeFence(strings.TrimSpace(content))
	if content == "" {
		return ParseResult{Reason: "empty completion content"}
	}

	var envelope struct {
		Opportunities []json.RawMessage `json:"instrumentation_opportunities"`
	}
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		logger.Warn("llm.parse.invalid_json", "error", err, "content_len", len(content))
		return ParseResult{Reason: "invalid JSON: " + err.Error()}
	}

	cleaned := make([]map[string]any, 0, len(envelope.Opportunities))
	for i, raw := range envelope.Opportunities {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			logger.Warn("llm.parse.skip_non_object", "index", i, "error", err)
			continue
		}
		if dropped := sanitizeOpportunity(m); len(dropped) > 0 {
			logger.Warn("llm.parse.sanitized", "index", i, "dropped", dropped)
		}
		cleaned = append(cleaned, m)
	}

	doc, err := json.Marshal(map[string]any{"instrumentation_opportunities": cleaned})
	if err != nil {
		return ParseResult{Reason: "re-encode: " + err.Error()}
	}
	if err := validateOpportunityList(doc); err != nil {
		logger.Warn("llm.parse.schema_validation_failed", "error", err)
		return ParseResult{Reason: "schema validation failed: " + err.Error()}
	}

	var out struct {
		Opportunities []Opportunity `json:"instrumentation_opportunities"`
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return ParseResult{Reason: "decode: " + err.Error()}
	}

	logger.Info("llm.parse.ok", "opportunities", len(out.Opportunities))
	return ParseResult{Opportunities: out.Opportunities}
}

// stripCodeFence unwraps ```json ... ``` fencing the model sometimes adds
// despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
