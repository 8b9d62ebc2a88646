package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/imgprep"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
)

type ocrRequest struct {
	Image string `json:"image" validate:"notblank"`
	Model string `json:"model" validate:"notblank"`
}

type compareRequest struct {
	Image string `json:"image" validate:"notblank"`
}

type ocrResponse struct {
	Engine     string   `json:"engine"`
	Text       string   `json:"text"`
	Confidence float32  `json:"confidence"`
	DurationMS int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
}

func toOCRResponse(r ocr.Result) ocrResponse {
	return ocrResponse{
		Engine:     r.Engine,
		Text:       r.Text,
		Confidence: r.Confidence,
		DurationMS: r.Duration.Milliseconds(),
		Warnings:   r.Warnings,
	}
}

// decodeImage accepts plain base64 or a data URL and checks the bytes are an
// image type we can read.
func decodeImage(b64 string) ([]byte, error) {
	if i := strings.Index(b64, ";base64,"); i >= 0 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, common.NewAppError("BAD_IMAGE", "image must be base64 encoded", common.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, common.NewAppError("BAD_IMAGE", "image is empty", common.ErrInvalidInput)
	}
	if mt := mimetype.Detect(data); !constants.IsAllowedImage(mt.String()) {
		return nil, common.NewAppError("BAD_IMAGE", "unsupported image type "+mt.String(), common.ErrInvalidInput)
	}
	return data, nil
}

func ocrError(err error) error {
	switch {
	case errors.Is(err, ocr.ErrUnknownEngine):
		return common.NewAppError("UNKNOWN_MODEL", err.Error(), common.ErrInvalidInput)
	case errors.Is(err, imgprep.ErrUnsupportedImage), errors.Is(err, imgprep.ErrEmptyImage):
		return common.NewAppError("BAD_IMAGE", err.Error(), common.ErrInvalidInput)
	default:
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return common.NewAppError("OCR_FAILED", "ocr failed", errors.Join(common.ErrUnavailable, err))
	}
}

func (s *HTTPServer) recognize(c echo.Context) error {
	if s.deps.OCR == nil {
		return unavailable("ocr")
	}
	var req ocrRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	// Unknown engines are a client error even before the image is looked at.
	if _, err := s.deps.OCR.Get(req.Model); err != nil {
		return ocrError(err)
	}
	data, err := decodeImage(req.Image)
	if err != nil {
		return err
	}
	res, err := s.deps.OCR.Recognize(c.Request().Context(), req.Model, data)
	if err != nil {
		return ocrError(err)
	}
	return c.JSON(http.StatusOK, toOCRResponse(res))
}

func (s *HTTPServer) compareEngines(c echo.Context) error {
	if s.deps.OCR == nil {
		return unavailable("ocr")
	}
	var req compareRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	data, err := decodeImage(req.Image)
	if err != nil {
		return err
	}
	type row struct {
		ocrResponse
		Error string `json:"error,omitempty"`
	}
	all := s.deps.OCR.RunAll(c.Request().Context(), data)
	out := make([]row, 0, len(all))
	for _, cmp := range all {
		r := row{ocrResponse: toOCRResponse(cmp.Result), Error: cmp.Error}
		r.Engine = cmp.Engine
		out = append(out, r)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": out})
}

func (s *HTTPServer) extractFromImage(c echo.Context) error {
	if s.deps.Processor == nil {
		return unavailable("extraction pipeline")
	}
	var req ocrRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	data, err := decodeImage(req.Image)
	if err != nil {
		return err
	}
	text, res, err := s.deps.Processor.ExtractFromImage(c.Request().Context(), req.Model, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ocr":        toOCRResponse(text),
		"extraction": toExtractResponse(res),
	})
}

// preprocessImage takes a multipart "image" file and returns the binarized PNG.
func (s *HTTPServer) preprocessImage(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return common.NewAppError("NO_IMAGE", "No image file provided", common.ErrInvalidInput)
	}
	if fh.Filename == "" {
		return common.NewAppError("NO_IMAGE", "No selected file", common.ErrInvalidInput)
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	img, mime, err := imgprep.Decode(data)
	if err != nil {
		return ocrError(err)
	}
	_, cleaned := imgprep.Preprocess(img, imgprep.Default())
	out, err := imgprep.EncodePNG(cleaned)
	if err != nil {
		return err
	}
	s.logger.Info("http.img_preprocess.ok",
		"req_id", common.RequestIDFromContext(c.Request().Context()),
		"mime", mime,
		"in_bytes", len(data),
		"out_bytes", len(out),
	)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="preprocessed.png"`)
	return c.Blob(http.StatusOK, "image/png", out)
}

type extractResponse struct {
	Record   map[string]any    `json:"record"`
	Fields   llm.InvoiceFields `json:"fields"`
	Stage    string            `json:"stage"`
	Repaired bool              `json:"repaired"`
	Warnings []string          `json:"warnings,omitempty"`
}

func toExtractResponse(res llm.ExtractResult) extractResponse {
	return extractResponse{
		Record:   res.Record,
		Fields:   res.Fields,
		Stage:    string(res.Outcome.Terminal()),
		Repaired: res.Outcome.NeededRepair(),
		Warnings: res.Warnings,
	}
}
