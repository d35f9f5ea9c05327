package pdfdoc

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDoc serializes a page range as the concatenation of per-page payloads,
// so chunk sizes are exactly the sum of the covered page sizes.
type fakeDoc struct {
	pageSizes []int
}

func (d *fakeDoc) NumPages() int { return len(d.pageSizes) }

func (d *fakeDoc) ByteSize() int {
	total := 0
	for _, s := range d.pageSizes {
		total += s
	}
	return total
}

func (d *fakeDoc) MarshalRange(from, to int) ([]byte, error) {
	if from < 1 || to > len(d.pageSizes) || from > to {
		return nil, fmt.Errorf("range %d-%d out of bounds", from, to)
	}
	var buf bytes.Buffer
	for p := from; p <= to; p++ {
		buf.Write(bytes.Repeat([]byte{byte(p)}, d.pageSizes[p-1]))
	}
	return buf.Bytes(), nil
}

func uniformDoc(pages, pageSize int) *fakeDoc {
	sizes := make([]int, pages)
	for i := range sizes {
		sizes[i] = pageSize
	}
	return &fakeDoc{pageSizes: sizes}
}

func TestSplitCoversEveryPageExactlyOnce(t *testing.T) {
	doc := &fakeDoc{pageSizes: []int{10, 200, 30, 500, 90, 90, 90, 5, 5, 700}}

	chunks, err := Split(doc, 600, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	next := 1
	for _, c := range chunks {
		assert.Equal(t, next, c.FromPage, "chunks must be contiguous and ordered")
		assert.GreaterOrEqual(t, c.ToPage, c.FromPage)
		next = c.ToPage + 1
	}
	assert.Equal(t, doc.NumPages()+1, next, "all pages consumed")
}

func TestSplitRespectsByteBound(t *testing.T) {
	doc := &fakeDoc{pageSizes: []int{100, 100, 100, 100, 399, 1, 250, 250, 250}}

	chunks, err := Split(doc, 400, nil)
	require.NoError(t, err)

	for _, c := range chunks {
		if c.Pages() > 1 {
			assert.LessOrEqual(t, len(c.Data), 400)
		}
	}
}

func TestSplitOversizedSinglePageIsStillEmitted(t *testing.T) {
	doc := &fakeDoc{pageSizes: []int{50, 5000, 50}}

	chunks, err := Split(doc, 100, nil)
	require.NoError(t, err)

	var oversized *Chunk
	for i := range chunks {
		if len(chunks[i].Data) > 100 {
			oversized = &chunks[i]
		}
	}
	require.NotNil(t, oversized, "oversized page must not be dropped")
	assert.Equal(t, 1, oversized.Pages())
	assert.Equal(t, 2, oversized.FromPage)
}

func TestSplitFortyPageThirtyMBDocument(t *testing.T) {
	// 40 pages, 30 MB total, 25 MB bound: exactly 2 chunks covering all
	// pages, neither above the bound.
	pageSize := 30 * 1024 * 1024 / 40
	doc := uniformDoc(40, pageSize)

	chunks, err := Split(doc, 25*1024*1024, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].FromPage)
	assert.Equal(t, 40, chunks[1].ToPage)
	assert.Equal(t, chunks[0].ToPage+1, chunks[1].FromPage)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Data), 25*1024*1024)
	}
}

func TestSplitSingleChunkWhenDocumentFits(t *testing.T) {
	doc := uniformDoc(12, 100)

	chunks, err := Split(doc, 10_000, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].FromPage)
	assert.Equal(t, 12, chunks[0].ToPage)
}

func TestSplitBinarySearchPicksLargestFit(t *testing.T) {
	// The size estimate assumes uniform pages; the fat page 3 makes the
	// second candidate overshoot, forcing the search to shrink it.
	doc := &fakeDoc{pageSizes: []int{100, 100, 300, 100}}

	chunks, err := Split(doc, 350, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 2, chunks[0].Pages())
	assert.Equal(t, 1, chunks[1].Pages())
	assert.Equal(t, 3, chunks[1].FromPage)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Data), 350)
	}
}

func TestSplitEmptyDocumentYieldsOneEmptyChunk(t *testing.T) {
	doc := &fakeDoc{}

	chunks, err := Split(doc, 100, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Data)
	assert.Equal(t, 0, chunks[0].Pages())
}

func TestSplitZeroByteSizeGuard(t *testing.T) {
	doc := &fakeDoc{pageSizes: []int{0, 0, 0}}

	chunks, err := Split(doc, 100, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].FromPage)
	assert.Equal(t, 3, chunks[len(chunks)-1].ToPage)
}
