package pdfdoc

import (
	"fmt"
	"log/slog"
)

// DefaultMaxChunkBytes bounds a chunk's serialized size at 25 MiB.
const DefaultMaxChunkBytes = 25 * 1024 * 1024

// Split partitions doc into page-aligned chunks whose serialized size stays
// within maxBytes. Every page lands in exactly one chunk, in page order. A
// single page that alone exceeds the bound is still emitted as its own
// chunk; pages are never dropped.
func Split(doc Document, maxBytes int, logger *slog.Logger) ([]Chunk, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}

	totalPages := doc.NumPages()
	if totalPages == 0 {
		// Degenerate: callers should guard against zero-page documents
		// upstream, but an empty chunk keeps the contract total.
		logger.Warn("pdfdoc.split.empty_document")
		return []Chunk{{FromPage: 0, ToPage: 0}}, nil
	}

	estimated := estimatePagesPerChunk(totalPages, doc.ByteSize(), maxBytes)
	logger.Info("pdfdoc.split.start",
		"pages", totalPages,
		"bytes", doc.ByteSize(),
		"max_chunk_bytes", maxBytes,
		"estimated_pages_per_chunk", estimated,
	)

	var chunks []Chunk
	start := 1
	for start <= totalPages {
		end := min(start+estimated-1, totalPages)

		data, err := doc.MarshalRange(start, end)
		if err != nil {
			return nil, fmt.Errorf("split at page %d: %w", start, err)
		}

		if len(data) > maxBytes && end > start {
			best, err := searchLargestFit(doc, start, end-start+1, maxBytes)
			if err != nil {
				return nil, fmt.Errorf("split at page %d: %w", start, err)
			}
			end = start + best - 1
			data, err = doc.MarshalRange(start, end)
			if err != nil {
				return nil, fmt.Errorf("split at page %d: %w", start, err)
			}
		}

		chunks = append(chunks, Chunk{FromPage: start, ToPage: end, Data: data})
		logger.Info("pdfdoc.split.chunk",
			"chunk", len(chunks),
			"from_page", start,
			"to_page", end,
			"bytes", len(data),
		)
		start = end + 1
	}

	logger.Info("pdfdoc.split.done", "chunks", len(chunks))
	return chunks, nil
}

// estimatePagesPerChunk guesses how many pages fit the byte bound, assuming
// pages are roughly uniform in size. Guarded against zero-size documents.
func estimatePagesPerChunk(totalPages, totalBytes, maxBytes int) int {
	if totalBytes <= 0 {
		return 1
	}
	est := totalPages * maxBytes / totalBytes
	if est < 1 {
		return 1
	}
	return est
}

// searchLargestFit binary-searches the largest page count starting at
// startPage whose serialized size is within maxBytes. Returns at least 1:
// a lone oversized page is accepted rather than dropped.
func searchLargestFit(doc Document, startPage, candidatePages, maxBytes int) (int, error) {
	low, high := 1, candidatePages
	best := 1
	for low <= high {
		mid := (low + high) / 2
		data, err := doc.MarshalRange(startPage, startPage+mid-1)
		if err != nil {
			return 0, err
		}
		if len(data) <= maxBytes {
			best = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return best, nil
}
