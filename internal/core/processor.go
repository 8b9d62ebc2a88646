// Package core coordinates an extraction job: load the input, run the field
// extractor and persist the outcome.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
	"github.com/joseph-ayodele/invoice-extract/internal/llmjson"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
)

// Processor runs extraction jobs stored in extract_job.
type Processor struct {
	logger    *slog.Logger
	extractor llm.FieldExtractor
	ocr       *ocr.Registry
	jobsRepo  repository.ExtractJobRepository
}

func NewProcessor(logger *slog.Logger, extractor llm.FieldExtractor, engines *ocr.Registry, jobsRepo repository.ExtractJobRepository) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:    logger,
		extractor: extractor,
		ocr:       engines,
		jobsRepo:  jobsRepo,
	}
}

// Submit records a new QUEUED job for text.
func (p *Processor) Submit(ctx context.Context, text string) (*repository.ExtractJob, error) {
	return p.jobsRepo.Create(ctx, text)
}

// ProcessJob moves a queued job through RUNNING to OK or FAILED.
// Extraction failures are persisted on the job and also returned.
func (p *Processor) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	start := time.Now()
	ctx = common.WithJobID(ctx, jobID.String())

	job, err := p.jobsRepo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := p.jobsRepo.MarkRunning(ctx, jobID); err != nil {
		return err
	}
	p.logger.Info("processor.job.start", "job_id", jobID, "input_len", len(job.InputText))

	res, err := p.extractor.ExtractFields(ctx, job.InputText)
	if err != nil {
		stage := string(res.Outcome.Terminal())
		if len(res.Outcome.Path) == 0 {
			stage = "generate"
		}
		if ferr := p.jobsRepo.FinishFailure(ctx, jobID, stage, res.Raw, err.Error()); ferr != nil {
			p.logger.Error("processor.job.persist_failure_failed", "job_id", jobID, "error", ferr)
		}
		p.logger.Error("processor.job.failed", "job_id", jobID, "stage", stage, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return err
	}

	record, err := json.Marshal(res.Record)
	if err != nil {
		if ferr := p.jobsRepo.FinishFailure(ctx, jobID, string(llmjson.StageDone), res.Raw, err.Error()); ferr != nil {
			p.logger.Error("processor.job.persist_failure_failed", "job_id", jobID, "error", ferr)
		}
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := p.jobsRepo.FinishSuccess(ctx, jobID, string(res.Outcome.Terminal()), res.Raw, record, res.Warnings); err != nil {
		return err
	}

	p.logger.Info("processor.job.ok",
		"job_id", jobID,
		"repaired", res.Outcome.NeededRepair(),
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ExtractFromImage runs OCR with the named engine and then field extraction
// on the recognized text, synchronously.
func (p *Processor) ExtractFromImage(ctx context.Context, engine string, image []byte) (ocr.Result, llm.ExtractResult, error) {
	if p.ocr == nil {
		return ocr.Result{}, llm.ExtractResult{}, common.NewAppError("OCR_UNAVAILABLE", "no ocr engines configured", common.ErrUnavailable)
	}
	recognized, err := p.ocr.Recognize(ctx, engine, image)
	if err != nil {
		if errors.Is(err, ocr.ErrUnknownEngine) {
			return recognized, llm.ExtractResult{}, common.NewAppError("UNKNOWN_ENGINE", err.Error(), common.ErrInvalidInput)
		}
		return recognized, llm.ExtractResult{}, common.NewAppError("OCR_FAILED", "ocr failed", errors.Join(common.ErrUnavailable, err))
	}
	res, err := p.extractor.ExtractFields(ctx, recognized.Text)
	return recognized, res, err
}
