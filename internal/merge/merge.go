package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/h2g-data/bidscan/internal/llm"
)

// Strategy selects how duplicate opportunities across chunks are combined.
type Strategy string

const (
	// StrategyDeterministic reduces duplicates locally by key. Default.
	StrategyDeterministic Strategy = "deterministic"
	// StrategyModel delegates the combine step to the completion service.
	StrategyModel Strategy = "model"
)

// Key identifies an opportunity for dedup purposes. Two extractions of the
// same job from different chunks should collide here.
type Key struct {
	JobCode     string
	Description string
	Location    string
}

const descKeyLen = 120

// KeyOf derives the dedup key: case-folded, whitespace-trimmed job code and
// location, plus the first 120 characters of the description.
func KeyOf(o llm.Opportunity) Key {
	desc := strings.ToLower(strings.TrimSpace(o.JobDescription))
	if len(desc) > descKeyLen {
		desc = desc[:descKeyLen]
	}
	return Key{
		JobCode:     strings.ToLower(strings.TrimSpace(o.JobCode)),
		Description: desc,
		Location:    strings.ToLower(strings.TrimSpace(o.ProjectLocation)),
	}
}

// Deterministic combines duplicates in place of order: for each key the
// surviving record keeps the highest confidence seen and the first non-empty
// value per field. First-appearance order is preserved, which makes the
// reduction idempotent.
func Deterministic(opps []llm.Opportunity, logger *slog.Logger) []llm.Opportunity {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opps) <= 1 {
		return opps
	}

	index := make(map[Key]int, len(opps))
	out := make([]llm.Opportunity, 0, len(opps))
	for _, o := range opps {
		k := KeyOf(o)
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, o)
			continue
		}
		out[i] = combine(out[i], o)
	}

	if len(out) < len(opps) {
		logger.Info("merge.deterministic", "in", len(opps), "out", len(out))
	}
	return out
}

// combine folds b into a: highest confidence wins, and empty fields in a are
// filled from b.
func combine(a, b llm.Opportunity) llm.Opportunity {
	if b.MatchConfidence != nil && (a.MatchConfidence == nil || *b.MatchConfidence > *a.MatchConfidence) {
		a.MatchConfidence = b.MatchConfidence
	}
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	fill(&a.JobCode, b.JobCode)
	fill(&a.JobDescription, b.JobDescription)
	fill(&a.JobSummary, b.JobSummary)
	fill(&a.JobSize, b.JobSize)
	fill(&a.MonitoringFrequency, b.MonitoringFrequency)
	fill(&a.ContractValueRange, b.ContractValueRange)
	fill(&a.SubmissionDeadline, b.SubmissionDeadline)
	fill(&a.LicensingRequirements, b.LicensingRequirements)
	fill(&a.TechnicalComplexity, b.TechnicalComplexity)
	fill(&a.ProjectLocation, b.ProjectLocation)
	fill(&a.ContractDuration, b.ContractDuration)
	fill(&a.InsuranceRequirements, b.InsuranceRequirements)
	fill(&a.EquipmentNeeded, b.EquipmentNeeded)
	fill(&a.ComplianceStandards, b.ComplianceStandards)
	fill(&a.ReportingRequirements, b.ReportingRequirements)
	fill(&a.ProjectType, b.ProjectType)
	return a
}

// Merger combines per-chunk extraction results into one list.
type Merger struct {
	Strategy    Strategy
	Completions llm.CompletionService
	MergePrompt string // used by StrategyModel; generic fallback when empty
	Logger      *slog.Logger
}

// Merge reduces a combined opportunity list. The model-delegated path is
// best-effort: any failure (transport, malformed JSON, empty result) returns
// the input unchanged rather than losing extractions.
func (m *Merger) Merge(ctx context.Context, opps []llm.Opportunity) []llm.Opportunity {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(opps) <= 1 {
		return opps
	}

	if m.Strategy == StrategyModel && m.Completions != nil {
		if merged, ok := m.mergeViaModel(ctx, opps, logger); ok {
			return merged
		}
		logger.Warn("merge.model_fallback", "candidates", len(opps))
		return opps
	}

	return Deterministic(opps, logger)
}

func (m *Merger) mergeViaModel(ctx context.Context, opps []llm.Opportunity, logger *slog.Logger) ([]llm.Opportunity, bool) {
	payload, err := json.MarshalIndent(map[string]any{"instrumentation_opportunities": opps}, "", "  ")
	if err != nil {
		logger.Warn("merge.model_encode_error", "error", err)
		return nil, false
	}

	prompt := m.MergePrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = llm.GenericMergePrompt
	}

	content, err := m.Completions.Complete(ctx, fmt.Sprintf("%s\n\n%s", prompt, payload), llm.Options{})
	if err != nil {
		logger.Warn("merge.model_call_error", "error", err)
		return nil, false
	}

	res := llm.ParseOpportunities(content, logger)
	if res.Reason != "" || res.Empty() {
		logger.Warn("merge.model_unusable_response", "reason", res.Reason)
		return nil, false
	}
	logger.Info("merge.model", "in", len(opps), "out", len(res.Opportunities))
	return res.Opportunities, true
}
