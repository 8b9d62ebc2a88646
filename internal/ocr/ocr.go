// Package ocr turns invoice images into text using one of several engines:
// the tesseract CLI, an embedded tesseract (build tag gosseract), or HTTP
// sidecars for EasyOCR, PaddleOCR and docTR.
package ocr

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownEngine is returned when a requested engine is not registered.
	ErrUnknownEngine = errors.New("unknown ocr engine")
	// ErrEngineDisabled is returned by engines compiled out of this binary.
	ErrEngineDisabled = errors.New("ocr engine not compiled in")
)

// Result is the text recognized in one image.
type Result struct {
	Engine     string        `json:"engine"`
	Text       string        `json:"text"`
	Confidence float32       `json:"confidence"` // 0..1, 0 when unknown
	Duration   time.Duration `json:"duration"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// Engine recognizes text in an encoded image (PNG, JPEG, ...).
// Implementations must be safe for concurrent use.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// EmbeddedConfig configures the in-process tesseract engine.
type EmbeddedConfig struct {
	Languages   []string // tesseract language codes, e.g. "eng"
	TessdataDir string
}
