package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/h2g-data/bidscan/internal/repository"
)

// Service produces XLSX bytes from stored opportunities.
type Service struct {
	opps   repository.OpportunityRepository
	logger *slog.Logger
}

func NewService(opps repository.OpportunityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opps: opps, logger: logger}
}

// ExportOpportunitiesXLSX returns a workbook with every stored opportunity,
// paged out of the database in id order.
func (s *Service) ExportOpportunitiesXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Opportunities"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Project ID",
		"Job Code",
		"Job Description",
		"Job Summary",
		"Job Size",
		"Frequency",
		"Match Confidence",
		"Contract Value Range",
		"Submission Deadline",
		"Technical Complexity",
		"Project Location",
		"Contract Duration",
		"Project Type",
		"Created At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	const pageSize = 1000
	row := 2
	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.opps.List(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("query opportunities: %w", err)
		}
		if len(page) == 0 {
			break
		}
		total += len(page)

		for _, o := range page {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheet, cell, v)
			}

			write(1, o.ProjectID)
			write(2, o.JobCode)
			write(3, truncate(o.JobDescription, 140))
			write(4, truncate(o.JobSummary, 140))
			write(5, o.JobSize)
			write(6, o.Frequency)
			if o.MatchConfidence != nil {
				write(7, *o.MatchConfidence)
			} else {
				write(7, "")
			}
			write(8, o.ContractValueRange)
			write(9, o.SubmissionDeadline)
			write(10, o.TechnicalComplexity)
			write(11, o.ProjectLocation)
			write(12, o.ContractDuration)
			write(13, o.ProjectType)
			if !o.CreatedAt.IsZero() {
				write(14, o.CreatedAt.Format("2006-01-02"))
			} else {
				write(14, "")
			}

			row++
		}
		if len(page) < pageSize {
			break
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "C", "D", 48)
	_ = f.SetColWidth(sheet, "E", "J", 18)
	_ = f.SetColWidth(sheet, "K", "L", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", total,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
