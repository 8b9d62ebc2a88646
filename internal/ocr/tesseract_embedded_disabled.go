//go:build !gosseract

package ocr

import (
	"context"
)

// EmbeddedTesseract is unavailable without the gosseract build tag.
type EmbeddedTesseract struct{}

func NewEmbeddedTesseract(EmbeddedConfig) (*EmbeddedTesseract, error) {
	return nil, ErrEngineDisabled
}

func (*EmbeddedTesseract) Name() string { return "tesseract" }

func (*EmbeddedTesseract) Recognize(context.Context, []byte) (Result, error) {
	return Result{}, ErrEngineDisabled
}

func (*EmbeddedTesseract) Close() error { return nil }
