package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/imgprep"
)

// TesseractConfig configures the CLI engine.
type TesseractConfig struct {
	Binary              string // binary name or absolute path; if empty -> "tesseract"
	Lang                string // default "eng"
	TessdataDir         string
	PSM                 int // e.g. 6 is good for a uniform block of text; 0 = default
	EnableTSVConfidence bool
	SkipPreprocess      bool
}

// Tesseract shells out to the tesseract CLI, feeding the image on stdin.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return string(constants.EngineTesseract) }

func (t *Tesseract) Recognize(ctx context.Context, image []byte) (Result, error) {
	start := time.Now()
	res := Result{Engine: t.Name()}

	input := image
	if !t.cfg.SkipPreprocess {
		prepared, err := preprocessForOCR(image)
		if err != nil {
			return res, err
		}
		input = prepared
	}

	// tesseract stdin stdout -l <lang>
	out, errb, err := t.runner.Run(ctx, input, t.cfg.Binary, t.args()...)
	if err != nil {
		res.Warnings = append(res.Warnings, strings.TrimSpace(string(errb)))
		return res, fmt.Errorf("tesseract: %w", err)
	}
	res.Text = Normalize(string(out))

	var engineConf float32
	if t.cfg.EnableTSVConfidence {
		tsv, errb, err := t.runner.Run(ctx, input, t.cfg.Binary, append(t.args(), "tsv")...)
		if err != nil {
			res.Warnings = append(res.Warnings, "tsv confidence unavailable: "+strings.TrimSpace(string(errb)))
		} else {
			engineConf = parseTSVConfidence(string(tsv))
		}
	}
	res.Confidence = blendConfidence(engineConf, heuristicConfidence(res.Text))
	res.Duration = time.Since(start)

	t.logger.Debug("ocr.tesseract.ok",
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (t *Tesseract) args() []string {
	args := []string{"stdin", "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

// preprocessForOCR converts to grayscale, applies the adaptive threshold and
// re-encodes as PNG.
func preprocessForOCR(image []byte) ([]byte, error) {
	img, _, err := imgprep.Decode(image)
	if err != nil {
		return nil, err
	}
	_, cleaned := imgprep.Preprocess(img, imgprep.ThresholdOnly())
	return imgprep.EncodePNG(cleaned)
}
