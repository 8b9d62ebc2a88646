// Package export renders evaluation runs and job listings as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extract/internal/evaluation"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
)

const (
	evaluationSheet = "Evaluation"
	summarySheet    = "Summary"
	jobsSheet       = "Jobs"
)

// ContentType is the MIME type of the workbooks produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service produces XLSX bytes. jobsRepo may be nil when only evaluation
// exports are needed.
type Service struct {
	jobsRepo repository.ExtractJobRepository
	logger   *slog.Logger
}

func NewService(jobsRepo repository.ExtractJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobsRepo, logger: logger}
}

// EvaluationXLSX writes one row per scored pair and a Summary sheet with the
// batch averages.
func (s *Service) EvaluationXLSX(rows []evaluation.Row, sum evaluation.Summary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if err := useSheet(f, evaluationSheet); err != nil {
		return nil, err
	}

	writeHeaders(f, evaluationSheet, []string{
		"ID", "Exact Match", "Field Accuracy", "Levenshtein", "BLEU", "F1", "MSE",
	})
	for i, r := range rows {
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("%d", i+1)
		}
		writeRow(f, evaluationSheet, i+2,
			id, r.Metrics.ExactMatch, r.Metrics.FieldAccuracy, r.Metrics.Levenshtein,
			r.Metrics.BLEU, r.Metrics.F1, r.Metrics.MSE)
	}
	_ = f.SetColWidth(evaluationSheet, "A", "A", 24)
	_ = f.SetColWidth(evaluationSheet, "B", "G", 14)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	writeHeaders(f, summarySheet, []string{"Metric", "Value"})
	summary := []struct {
		name string
		v    any
	}{
		{"Pairs", sum.Count},
		{"Exact Match Rate", sum.ExactMatch},
		{"Field Accuracy", sum.FieldAccuracy},
		{"Levenshtein", sum.Levenshtein},
		{"BLEU", sum.BLEU},
		{"F1", sum.F1},
		{"MSE", sum.MSE},
	}
	for i, m := range summary {
		writeRow(f, summarySheet, i+2, m.name, m.v)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.evaluation.ok", "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// JobsXLSX lists extraction jobs matching filter.
func (s *Service) JobsXLSX(ctx context.Context, filter repository.JobFilter) ([]byte, error) {
	if s.jobsRepo == nil {
		return nil, fmt.Errorf("jobs export: no job store configured")
	}
	start := time.Now()

	jobs, err := s.jobsRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := useSheet(f, jobsSheet); err != nil {
		return nil, err
	}
	writeHeaders(f, jobsSheet, []string{
		"Job ID", "Status", "Stage", "Created", "Finished", "Input", "Extracted", "Warnings", "Error",
	})
	for i, j := range jobs {
		finished := ""
		if j.FinishedAt != nil {
			finished = j.FinishedAt.UTC().Format(time.RFC3339)
		}
		writeRow(f, jobsSheet, i+2,
			j.ID.String(),
			string(j.Status),
			j.Stage,
			j.CreatedAt.UTC().Format(time.RFC3339),
			finished,
			truncate(j.InputText, 140),
			string(j.ExtractedJSON),
			strings.Join(j.Warnings, "; "),
			j.ErrorMessage,
		)
	}
	_ = f.SetColWidth(jobsSheet, "A", "A", 38) // uuid
	_ = f.SetColWidth(jobsSheet, "B", "C", 12)
	_ = f.SetColWidth(jobsSheet, "D", "E", 22) // timestamps
	_ = f.SetColWidth(jobsSheet, "F", "G", 60)
	_ = f.SetColWidth(jobsSheet, "H", "I", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.jobs.ok",
		"status", filter.Status,
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// useSheet creates sheet, makes it active and drops the default Sheet1.
func useSheet(f *excelize.File, sheet string) error {
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return f.DeleteSheet("Sheet1")
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
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
