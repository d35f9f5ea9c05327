package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2g-data/bidscan/internal/entity"
	"github.com/h2g-data/bidscan/internal/llm"
)

type fakeDocs struct {
	docs    []entity.BidDocument
	fetches int
}

func (f *fakeDocs) FetchBatch(_ context.Context, limit, offset int) ([]entity.BidDocument, error) {
	f.fetches++
	if offset >= len(f.docs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.docs) {
		end = len(f.docs)
	}
	return f.docs[offset:end], nil
}

func (f *fakeDocs) Insert(context.Context, entity.BidDocument) error    { return nil }
func (f *fakeDocs) IncrementRetry(context.Context, int64, string) error { return nil }
func (f *fakeDocs) UpsertProjectDocuments(context.Context, entity.ProjectDocuments) error {
	return nil
}
func (f *fakeDocs) MissingCrimsonIDs(_ context.Context, ids []string) ([]string, error) {
	return ids, nil
}

type fakeOpps struct {
	existing map[int64]struct{}
	rows     []entity.OpportunityRow
	failNext bool
}

func (f *fakeOpps) ExistingProjectIDs(context.Context) (map[int64]struct{}, error) {
	if f.existing == nil {
		return map[int64]struct{}{}, nil
	}
	return f.existing, nil
}

func (f *fakeOpps) Insert(_ context.Context, row entity.OpportunityRow) bool {
	if f.failNext {
		f.failNext = false
		return false
	}
	f.rows = append(f.rows, row)
	return true
}

func (f *fakeOpps) List(context.Context, int, int) ([]entity.StoredOpportunity, error) {
	return nil, nil
}

type fakeStore struct {
	keys []string
}

func (f *fakeStore) Get(_ context.Context, _, key string) ([]byte, error) {
	f.keys = append(f.keys, key)
	return []byte("%PDF-fake"), nil
}

func (f *fakeStore) Put(context.Context, string, string, []byte) error { return nil }

type fakeProcessor struct {
	opps     []llm.Opportunity
	calls    int
	failures int
}

func (f *fakeProcessor) ExtractOpportunities(context.Context, []byte) ([]llm.Opportunity, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("transient extraction error")
	}
	return f.opps, nil
}

func doc(pid int64, path string) entity.BidDocument {
	return entity.BidDocument{ProjectID: pid, DocumentID: "d", DocumentType: "Specs", S3Path: path}
}

func newTestRunner(docs *fakeDocs, opps *fakeOpps, store *fakeStore, proc Processor) (*Runner, *[]time.Duration) {
	r := NewRunner(docs, opps, store, proc, Pacing{}, "bid-docs-h2g", "all/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.progress = false
	sleeps := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return r, sleeps
}

func TestRunProcessesAndInserts(t *testing.T) {
	docs := &fakeDocs{docs: []entity.BidDocument{
		doc(1, "all/1/specs.pdf"),
		doc(2, "s3://bucket/2/plans.pdf"),
	}}
	opps := &fakeOpps{}
	store := &fakeStore{}
	proc := &fakeProcessor{opps: []llm.Opportunity{{JobCode: "M-1", JobDescription: "metering"}}}

	r, sleeps := newTestRunner(docs, opps, store, proc)
	totals, err := r.Run(context.Background(), 0, 100, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, totals.ProcessedProjects)
	assert.Equal(t, 2, totals.Inserted)
	assert.Zero(t, totals.FailedDocs)
	assert.Len(t, opps.rows, 2)
	assert.Equal(t, []string{"all/1/specs.pdf", "2/plans.pdf"}, store.keys)
	assert.NotEmpty(t, *sleeps, "expected cooldowns between projects")
}

func TestRunSkipsProcessedAndInvalidPaths(t *testing.T) {
	docs := &fakeDocs{docs: []entity.BidDocument{
		doc(1, "all/1/specs.pdf"), // already processed
		doc(2, "NA"),              // placeholder path
		doc(3, "all/3/specs.pdf"),
	}}
	opps := &fakeOpps{existing: map[int64]struct{}{1: {}}}
	proc := &fakeProcessor{opps: []llm.Opportunity{{JobCode: "X"}}}

	r, _ := newTestRunner(docs, opps, &fakeStore{}, proc)
	totals, err := r.Run(context.Background(), 0, 100, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, totals.ProcessedProjects)
	assert.Equal(t, 1, proc.calls)
	require.Len(t, opps.rows, 1)
	assert.Equal(t, int64(3), opps.rows[0].ProjectID)
}

func TestRunRetryPassRecoversFailure(t *testing.T) {
	docs := &fakeDocs{docs: []entity.BidDocument{doc(7, "all/7/specs.pdf")}}
	opps := &fakeOpps{}
	proc := &fakeProcessor{
		opps:     []llm.Opportunity{{JobCode: "R-1"}},
		failures: 1, // first attempt fails, retry pass succeeds
	}

	r, sleeps := newTestRunner(docs, opps, &fakeStore{}, proc)
	totals, err := r.Run(context.Background(), 0, 100, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, totals.FailedDocs)
	assert.Equal(t, 1, totals.ProcessedProjects)
	assert.Equal(t, 1, totals.Inserted)
	assert.Equal(t, 2, proc.calls)
	assert.Contains(t, *sleeps, 60*time.Second, "expected the retry-pass wait")
}

func TestRunHonorsMaxProjects(t *testing.T) {
	docs := &fakeDocs{docs: []entity.BidDocument{
		doc(1, "all/1/a.pdf"), doc(2, "all/2/b.pdf"), doc(3, "all/3/c.pdf"),
	}}
	proc := &fakeProcessor{opps: []llm.Opportunity{{JobCode: "X"}}}

	r, _ := newTestRunner(docs, &fakeOpps{}, &fakeStore{}, proc)
	totals, err := r.Run(context.Background(), 0, 100, 2)

	require.NoError(t, err)
	assert.Equal(t, 2, totals.ProcessedProjects)
	assert.Equal(t, 2, proc.calls)
}

func TestRunStopsOnCancellation(t *testing.T) {
	docs := &fakeDocs{docs: []entity.BidDocument{doc(1, "all/1/a.pdf"), doc(2, "all/2/b.pdf")}}
	proc := &fakeProcessor{opps: []llm.Opportunity{{JobCode: "X"}}}

	ctx, cancel := context.WithCancel(context.Background())
	r, _ := newTestRunner(docs, &fakeOpps{}, &fakeStore{}, proc)
	r.sleep = func(context.Context, time.Duration) error {
		cancel() // cancel during the first cooldown
		return ctx.Err()
	}

	_, err := r.Run(ctx, 0, 100, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPagesThroughBatches(t *testing.T) {
	var all []entity.BidDocument
	for i := int64(1); i <= 5; i++ {
		all = append(all, doc(i, "all/x.pdf"))
	}
	docs := &fakeDocs{docs: all}
	proc := &fakeProcessor{opps: []llm.Opportunity{{JobCode: "X"}}}

	r, _ := newTestRunner(docs, &fakeOpps{}, &fakeStore{}, proc)
	totals, err := r.Run(context.Background(), 0, 2, 0)

	require.NoError(t, err)
	assert.Equal(t, 5, totals.ProcessedProjects)
	assert.GreaterOrEqual(t, docs.fetches, 3)
}
