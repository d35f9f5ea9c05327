package pdfdoc

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"
)

// NoExtractableText is returned in place of an empty string so downstream
// consumers always receive a non-empty prompt payload.
const NoExtractableText = "[No extractable text found in PDF.]"

// ExtractText pulls linear text out of a serialized chunk, page by page.
// A page whose extraction fails contributes an empty string instead of
// aborting the chunk: one unreadable page must not lose the document.
func ExtractText(data []byte, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.Warn("pdfdoc.text.unreadable_chunk", "error", err, "bytes", len(data))
		return NoExtractableText
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := pagePlainText(page)
		if err != nil {
			logger.Warn("pdfdoc.text.page_failed", "page", i, "error", err)
			continue
		}
		if txt == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s", i, txt)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		logger.Warn("pdfdoc.text.no_text", "pages", r.NumPage())
		return NoExtractableText
	}
	logger.Info("pdfdoc.text.ok", "pages", r.NumPage(), "chars", len(text))
	return text
}

// pagePlainText wraps the library call; it is known to panic on some
// malformed content streams, which must degrade to a per-page failure.
func pagePlainText(page ltpdf.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page text extraction panic: %v", rec)
		}
	}()
	return page.GetPlainText(nil)
}
