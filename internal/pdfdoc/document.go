package pdfdoc

import (
	"bytes"
	"fmt"

	ltpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is a paginated binary document whose page ranges can be
// re-serialized so their encoded size can be measured against a chunk bound.
type Document interface {
	NumPages() int
	ByteSize() int
	// MarshalRange serializes pages [from, to], 1-based inclusive.
	MarshalRange(from, to int) ([]byte, error)
}

// Chunk is a page-aligned slice of a Document whose serialized size is
// bounded (except for the single-oversized-page degenerate case).
type Chunk struct {
	FromPage int
	ToPage   int
	Data     []byte
}

// Pages returns the number of pages covered by the chunk.
func (c Chunk) Pages() int {
	if c.ToPage < c.FromPage {
		return 0
	}
	return c.ToPage - c.FromPage + 1
}

// File is a PDF-backed Document held fully in memory.
type File struct {
	data  []byte
	pages int
	conf  *model.Configuration
}

// Open parses PDF bytes into a Document. Corrupted files fail here rather
// than later in the pipeline.
func Open(data []byte) (*File, error) {
	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &File{data: data, pages: r.NumPage(), conf: conf}, nil
}

func (f *File) NumPages() int { return f.pages }

func (f *File) ByteSize() int { return len(f.data) }

func (f *File) MarshalRange(from, to int) ([]byte, error) {
	if from < 1 || to > f.pages || from > to {
		return nil, fmt.Errorf("page range %d-%d out of bounds (1-%d)", from, to, f.pages)
	}
	var out bytes.Buffer
	sel := []string{fmt.Sprintf("%d-%d", from, to)}
	if err := api.Trim(bytes.NewReader(f.data), &out, sel, f.conf); err != nil {
		return nil, fmt.Errorf("serialize pages %d-%d: %w", from, to, err)
	}
	return out.Bytes(), nil
}
