package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/core"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
)

// RecordExtractor runs the model or, for text that is already model output,
// only the JSON recovery. *llm.Extractor implements it.
type RecordExtractor interface {
	llm.FieldExtractor
	ExtractFromOutput(ctx context.Context, output string) (llm.ExtractResult, error)
}

// Pinger reports store health. *repository.DB implements it.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the services behind the HTTP and gRPC surfaces. Nil members turn
// the routes that need them into 503s.
type Deps struct {
	Logger    *slog.Logger
	OCR       *ocr.Registry
	Extractor RecordExtractor
	Processor *core.Processor
	Queue     async.Queue
	Jobs      repository.ExtractJobRepository
	Export    *export.Service
	Store     Pinger
}

type HTTPServer struct {
	deps   Deps
	logger *slog.Logger
}

// NewHTTPServer builds the echo engine with middleware and routes attached.
func NewHTTPServer(deps Deps, cfg common.ServerConfig) *echo.Echo {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &HTTPServer{deps: deps, logger: deps.Logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler
	e.Validator = common.NewRequestValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(common.WithRequestID(req.Context(), id)))
		},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.Log(context.Background(), level, "http.request",
				"req_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	}))

	s.routes(e)
	return e
}

func (s *HTTPServer) routes(e *echo.Echo) {
	e.GET("/healthz", s.healthz)

	e.POST("/ocr", s.recognize)
	e.POST("/ocr/compare", s.compareEngines)
	e.POST("/ocr/extract", s.extractFromImage)
	e.POST("/img-preprocess", s.preprocessImage)

	e.POST("/llmops", s.extract)
	e.POST("/llmops/jobs", s.submitJob)
	e.GET("/llmops/jobs", s.listJobs)
	e.GET("/llmops/jobs/export", s.exportJobs)
	e.GET("/llmops/jobs/:id", s.getJob)

	e.POST("/evaluate", s.evaluate)
	e.POST("/evaluate/export", s.exportEvaluation)
}

func (s *HTTPServer) healthz(c echo.Context) error {
	out := echo.Map{"status": "ok"}
	if s.deps.OCR != nil {
		out["ocr_engines"] = s.deps.OCR.Names()
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.HealthCheck(c.Request().Context(), 2*time.Second); err != nil {
			s.logger.Warn("http.healthz.store_down", "error", err)
			out["status"] = "degraded"
			out["store"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, out)
		}
		out["store"] = "ok"
	}
	return c.JSON(http.StatusOK, out)
}

// bindValid binds the request body into req and runs the struct validator.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return common.NewAppError("BAD_REQUEST", "malformed request body", common.ErrInvalidInput)
	}
	return c.Validate(req)
}

func unavailable(what string) error {
	return common.NewAppError("UNAVAILABLE", what+" is not configured", common.ErrUnavailable)
}
