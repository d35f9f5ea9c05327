package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/h2g-data/bidscan/internal/entity"
)

type fakeOpps struct {
	items []entity.StoredOpportunity
}

func (f *fakeOpps) ExistingProjectIDs(context.Context) (map[int64]struct{}, error) {
	return nil, nil
}

func (f *fakeOpps) Insert(context.Context, entity.OpportunityRow) bool { return true }

func (f *fakeOpps) List(_ context.Context, limit, offset int) ([]entity.StoredOpportunity, error) {
	if offset >= len(f.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.items) {
		end = len(f.items)
	}
	return f.items[offset:end], nil
}

func TestExportOpportunitiesXLSX(t *testing.T) {
	conf := 85
	repo := &fakeOpps{items: []entity.StoredOpportunity{
		{
			ID:        1,
			CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			OpportunityRow: entity.OpportunityRow{
				ProjectID:       42,
				JobCode:         "M-101",
				JobDescription:  "Flow metering for water main",
				JobSize:         "medium",
				MatchConfidence: &conf,
				ProjectType:     "Water/Wastewater",
			},
		},
		{
			ID: 2,
			OpportunityRow: entity.OpportunityRow{
				ProjectID: 43,
				JobCode:   "E-7",
			},
		},
	}}

	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	data, err := svc.ExportOpportunitiesXLSX(context.Background())
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Opportunities")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 rows

	assert.Equal(t, "Project ID", rows[0][0])
	assert.Equal(t, "42", rows[1][0])
	assert.Equal(t, "M-101", rows[1][1])
	assert.Equal(t, "85", rows[1][6])
	assert.Equal(t, "2026-03-14", rows[1][13])
	assert.Equal(t, "E-7", rows[2][1])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
