package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// SidecarConfig points at an HTTP OCR server wrapping a Python engine.
type SidecarConfig struct {
	// Engine name reported in results, e.g. "paddle".
	Name string
	// Server base URL. For example http://127.0.0.1:8884
	BaseURL string
	// HTTP client used to make requests to the server
	Client *http.Client
	// Language codes to recognize, primary first.
	Languages []string
	// Separator used to join recognized lines. Paddle keeps line structure.
	Separator string
}

// Sidecar posts the image as multipart form data to {BaseURL}/ocr and accepts
// either {"text", "confidence"} or {"lines": [{"text", "confidence"}]}.
type Sidecar struct {
	cfg    SidecarConfig
	logger *slog.Logger
}

type sidecarLine struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

type sidecarResponse struct {
	Text       string        `json:"text"`
	Confidence *float32      `json:"confidence"`
	Lines      []sidecarLine `json:"lines"`
}

func NewSidecar(cfg SidecarConfig, logger *slog.Logger) *Sidecar {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en"}
	}
	if cfg.Separator == "" {
		cfg.Separator = " "
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Sidecar{cfg: cfg, logger: logger}
}

func (s *Sidecar) Name() string { return s.cfg.Name }

func (s *Sidecar) Recognize(ctx context.Context, image []byte) (Result, error) {
	start := time.Now()
	res := Result{Engine: s.cfg.Name}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	ext := mimetype.Detect(image).Extension()
	imagePart, err := writer.CreateFormFile("file", "image"+ext)
	if err != nil {
		return res, errors.Join(errors.New("failed to prepare multipart form data"), err)
	}
	if _, err = imagePart.Write(image); err != nil {
		return res, errors.Join(errors.New("failed to write image to multipart"), err)
	}
	if err = writer.WriteField("languages", strings.Join(s.cfg.Languages, ",")); err != nil {
		return res, errors.Join(errors.New("failed to write languages to multipart"), err)
	}
	if err = writer.Close(); err != nil {
		return res, errors.Join(errors.New("failed to finalize multipart writer"), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/ocr", body)
	if err != nil {
		return res, errors.Join(errors.New("failed to prepare HTTP request"), err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return res, errors.Join(fmt.Errorf("%s sidecar request failed", s.cfg.Name), err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Warn("ocr.sidecar.body_close_error", "engine", s.cfg.Name, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return res, errors.Join(errors.New("failed to read sidecar response"), err)
	}
	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("%s sidecar: bad status code %d", s.cfg.Name, resp.StatusCode)
	}

	var data sidecarResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return res, errors.Join(errors.New("failed to decode sidecar response"), err)
	}

	res.Text, res.Confidence = s.combine(data)
	if res.Confidence == 0 && res.Text != "" {
		res.Confidence = heuristicConfidence(res.Text)
		res.Warnings = append(res.Warnings, "engine reported no confidence; heuristic used")
	}
	res.Duration = time.Since(start)

	s.logger.Debug("ocr.sidecar.ok",
		"engine", s.cfg.Name,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (s *Sidecar) combine(data sidecarResponse) (string, float32) {
	if len(data.Lines) == 0 {
		var conf float32
		if data.Confidence != nil {
			conf = *data.Confidence
		}
		return strings.TrimSpace(data.Text), conf
	}
	texts := make([]string, 0, len(data.Lines))
	confs := make([]float32, 0, len(data.Lines))
	for _, ln := range data.Lines {
		t := strings.TrimSpace(ln.Text)
		if t == "" {
			continue
		}
		texts = append(texts, t)
		confs = append(confs, ln.Confidence)
	}
	return strings.Join(texts, s.cfg.Separator), meanConfidence(confs)
}
