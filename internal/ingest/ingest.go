// Package ingest turns invoice images on disk into extraction jobs: each file
// is hashed, OCRed and submitted to the background queue.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
)

// Recognizer runs a named OCR engine. *ocr.Registry implements it.
type Recognizer interface {
	Recognize(ctx context.Context, engine string, image []byte) (ocr.Result, error)
}

// Submitter records a QUEUED job. *core.Processor implements it.
type Submitter interface {
	Submit(ctx context.Context, text string) (*repository.ExtractJob, error)
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path         string    `json:"path"`
	JobID        uuid.UUID `json:"job_id,omitempty"`
	HashHex      string    `json:"sha256,omitempty"`
	Deduplicated bool      `json:"deduplicated,omitempty"`
	Confidence   float32   `json:"confidence,omitempty"`
	Err          string    `json:"error,omitempty"`
}

type Ingestor struct {
	ocr    Recognizer
	submit Submitter
	queue  async.Queue
	engine string
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID // sha256 -> job
}

func NewIngestor(rec Recognizer, submit Submitter, queue async.Queue, engine string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == "" {
		engine = string(constants.EngineTesseract)
	}
	return &Ingestor{
		ocr:    rec,
		submit: submit,
		queue:  queue,
		engine: engine,
		logger: logger,
		seen:   map[string]uuid.UUID{},
	}
}

// IngestPath OCRs one image and queues its text for extraction. A file whose
// content was already ingested by this Ingestor is reported as deduplicated
// and not queued again.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (FileResult, error) {
	start := time.Now()
	out := FileResult{Path: path}

	if !AllowedExt(filepath.Ext(path)) {
		return out, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported extension %q", filepath.Ext(path)), common.ErrInvalidInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	if id, ok := i.seen[out.HashHex]; ok {
		i.mu.Unlock()
		out.JobID = id
		out.Deduplicated = true
		i.logger.Info("ingest.deduplicated", "path", path, "job_id", id)
		return out, nil
	}
	i.mu.Unlock()

	res, err := i.ocr.Recognize(ctx, i.engine, data)
	if err != nil {
		return out, fmt.Errorf("ocr %s: %w", path, err)
	}
	out.Confidence = res.Confidence
	if strings.TrimSpace(res.Text) == "" {
		return out, common.NewAppError("NO_TEXT", "ocr found no text", common.ErrExtraction)
	}

	job, err := i.submit.Submit(ctx, res.Text)
	if err != nil {
		return out, err
	}
	out.JobID = job.ID
	if err := i.queue.Enqueue(ctx, async.Job{ID: job.ID, SubmittedAt: time.Now()}); err != nil {
		return out, err
	}

	i.mu.Lock()
	i.seen[out.HashHex] = job.ID
	i.mu.Unlock()

	i.logger.Info("ingest.queued",
		"path", path,
		"job_id", job.ID,
		"engine", i.engine,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Run ingests every path received until paths closes or ctx ends. Failures are
// logged and do not stop the loop.
func (i *Ingestor) Run(ctx context.Context, paths <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			if _, err := i.IngestPath(ctx, p); err != nil {
				i.logger.Error("ingest.failed", "path", p, "error", err)
			}
		}
	}
}

// AllowedExt checks if a file extension is an accepted image type.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
