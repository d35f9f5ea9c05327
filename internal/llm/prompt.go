package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/h2g-data/bidscan/internal/common"
)

// PromptLoader resolves the extraction prompt and the optional merge prompt
// from local files. The extraction prompt is required: running the pipeline
// without it would burn completion spend on an unusable instruction.
type PromptLoader struct {
	Primary    string
	Alternates []string
	MergeFile  string
	Logger     *slog.Logger
}

// LoadExtractionPrompt reads the first prompt file that exists among the
// primary and alternate names. Missing all of them is a startup-fatal
// configuration fault.
func (p *PromptLoader) LoadExtractionPrompt() (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	candidates := append([]string{p.Primary}, p.Alternates...)
	for _, name := range candidates {
		if name == "" {
			continue
		}
		data, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		logger.Info("llm.prompt.loaded", "file", name, "bytes", len(data))
		return decodePrompt(data, logger), nil
	}
	return "", common.NewAppError("CONFIG_ERROR",
		fmt.Sprintf("required prompt file not found, tried: %s", strings.Join(candidates, ", ")),
		common.ErrInvalidInput)
}

// LoadMergePrompt reads the merge prompt if present. Absence is tolerated;
// the orchestrator falls back to a generic combine instruction.
func (p *PromptLoader) LoadMergePrompt() (string, bool) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if p.MergeFile == "" {
		return "", false
	}
	data, err := os.ReadFile(p.MergeFile)
	if err != nil {
		logger.Warn("llm.prompt.merge_missing", "file", p.MergeFile, "error", err)
		return "", false
	}
	logger.Info("llm.prompt.merge_loaded", "file", p.MergeFile, "bytes", len(data))
	return decodePrompt(data, logger), true
}

func decodePrompt(data []byte, logger *slog.Logger) string {
	if utf8.Valid(data) {
		return string(data)
	}
	logger.Warn("llm.prompt.invalid_utf8_ignored")
	return strings.ToValidUTF8(string(data), "")
}

// BuildDocumentPrompt wraps extracted text for a whole-chunk completion call.
func BuildDocumentPrompt(prompt, text string) string {
	return fmt.Sprintf("%s\n\n--- BEGIN FILE CONTENT ---\n%s\n--- END FILE CONTENT ---", prompt, text)
}

// BuildSegmentPrompt wraps one segment, annotated with its position so the
// model knows it is seeing a partial view.
func BuildSegmentPrompt(prompt, text string, seg, segTotal, chunk, chunkTotal int) string {
	return fmt.Sprintf(
		"%s\n\n[Context: segment %d/%d of chunk %d/%d of the source document]\n\n--- BEGIN FILE CONTENT ---\n%s\n--- END FILE CONTENT ---",
		prompt, seg, segTotal, chunk, chunkTotal, text)
}

// GenericMergePrompt is the fallback combine instruction used when no
// dedicated merge prompt file is configured.
const GenericMergePrompt = "Combine and consolidate the following analysis results into a single comprehensive JSON response with the same structure:"
