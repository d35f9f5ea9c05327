package constants

import (
	"strings"
)

// NotSpecified is the default stored for enum and free-text columns the
// model left blank.
const NotSpecified = "Not specified"

// JobSize is the closed job-size enumeration stored in opportunities.
type JobSize string

const (
	JobSizeSmall   JobSize = "small"
	JobSizeMedium  JobSize = "medium"
	JobSizeBig     JobSize = "big"
	JobSizeVeryBig JobSize = "very big"
)

var allJobSizes = []JobSize{JobSizeSmall, JobSizeMedium, JobSizeBig, JobSizeVeryBig}

// JobSizes returns the stable enum values for prompt construction.
func JobSizes() []string {
	result := make([]string, len(allJobSizes))
	for i, s := range allJobSizes {
		result[i] = string(s)
	}
	return result
}

// NormalizeJobSize clamps free text onto the job-size enum, defaulting to
// "small" for anything unrecognized.
func NormalizeJobSize(input string) JobSize {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return JobSizeSmall
	}
	for _, s := range allJobSizes {
		if normalized == string(s) {
			return s
		}
	}
	return JobSizeSmall
}

// TechnicalComplexity is the closed complexity enumeration.
type TechnicalComplexity string

const (
	ComplexityLow          TechnicalComplexity = "low"
	ComplexityMedium       TechnicalComplexity = "medium"
	ComplexityHigh         TechnicalComplexity = "high"
	ComplexitySpecialized  TechnicalComplexity = "specialized"
	ComplexityNotSpecified TechnicalComplexity = TechnicalComplexity(NotSpecified)
)

var allComplexities = []TechnicalComplexity{
	ComplexityLow,
	ComplexityMedium,
	ComplexityHigh,
	ComplexitySpecialized,
	ComplexityNotSpecified,
}

// NormalizeTechnicalComplexity clamps free text onto the complexity enum.
func NormalizeTechnicalComplexity(input string) TechnicalComplexity {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" || normalized == strings.ToLower(NotSpecified) {
		return ComplexityNotSpecified
	}
	for _, c := range allComplexities {
		if normalized == strings.ToLower(string(c)) {
			return c
		}
	}
	return ComplexityNotSpecified
}

// ContractValueRange is the closed value band enumeration.
type ContractValueRange string

const (
	ValueRangeSmall        ContractValueRange = "small (<$500K)"
	ValueRangeMedium       ContractValueRange = "medium ($500K-$5M)"
	ValueRangeLarge        ContractValueRange = "large ($5M-$50M)"
	ValueRangeMega         ContractValueRange = "mega (>$50M)"
	ValueRangeNotSpecified ContractValueRange = ContractValueRange(NotSpecified)
)

// NormalizeContractValueRange maps free-text value descriptions onto the band
// enum. The heuristics mirror the shapes the model actually emits: band names
// with or without dollar figures, and occasional ">$5M"-style fragments.
func NormalizeContractValueRange(input string) ContractValueRange {
	s := strings.ToLower(strings.TrimSpace(input))
	switch {
	case s == "":
		return ValueRangeNotSpecified
	case strings.Contains(s, "not specified"):
		return ValueRangeNotSpecified
	case strings.Contains(s, "small"):
		return ValueRangeSmall
	case strings.Contains(s, "medium"):
		return ValueRangeMedium
	case strings.Contains(s, "large") && !strings.Contains(s, ">$"):
		return ValueRangeMedium
	case strings.Contains(s, "mega"):
		if strings.Contains(s, "50m") || strings.Contains(s, ">$50") {
			return ValueRangeMega
		}
		return ValueRangeLarge
	case strings.Contains(s, ">$5m") || strings.Contains(s, "$5m") || strings.Contains(s, "5m"):
		return ValueRangeLarge
	default:
		return ValueRangeNotSpecified
	}
}
