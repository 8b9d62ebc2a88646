package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
)

type extractRequest struct {
	Text string `json:"text" validate:"notblank"`
	// Raw marks Text as model output already; only JSON recovery runs.
	Raw bool `json:"raw"`
}

type submitJobRequest struct {
	Text string `json:"text" validate:"notblank"`
}

func (s *HTTPServer) extract(c echo.Context) error {
	if s.deps.Extractor == nil {
		return unavailable("extractor")
	}
	var req extractRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	var err error
	var resp extractResponse
	if req.Raw {
		res, rerr := s.deps.Extractor.ExtractFromOutput(ctx, req.Text)
		resp, err = toExtractResponse(res), rerr
	} else {
		res, rerr := s.deps.Extractor.ExtractFields(ctx, req.Text)
		resp, err = toExtractResponse(res), rerr
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) submitJob(c echo.Context) error {
	if s.deps.Processor == nil || s.deps.Queue == nil {
		return unavailable("job queue")
	}
	var req submitJobRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	job, err := s.deps.Processor.Submit(ctx, req.Text)
	if err != nil {
		return err
	}
	err = s.deps.Queue.Enqueue(ctx, async.Job{
		ID:          job.ID,
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	})
	if err != nil {
		// The row stays QUEUED but no worker will pick it up; close it out.
		if s.deps.Jobs != nil {
			if ferr := s.deps.Jobs.FinishFailure(ctx, job.ID, "enqueue", "", err.Error()); ferr != nil {
				s.logger.Error("llmops.job.persist_failure_failed", "job_id", job.ID, "error", ferr)
			}
		}
		return err
	}
	return c.JSON(http.StatusAccepted, echo.Map{"job_id": job.ID, "status": job.Status})
}

func (s *HTTPServer) getJob(c echo.Context) error {
	if s.deps.Jobs == nil {
		return unavailable("job store")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.NewAppError("BAD_JOB_ID", "job id must be a UUID", common.ErrInvalidInput)
	}
	job, err := s.deps.Jobs.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

func (s *HTTPServer) listJobs(c echo.Context) error {
	if s.deps.Jobs == nil {
		return unavailable("job store")
	}
	filter, err := jobFilter(c)
	if err != nil {
		return err
	}
	jobs, err := s.deps.Jobs.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []*repository.ExtractJob{}
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
}

func (s *HTTPServer) exportJobs(c echo.Context) error {
	if s.deps.Export == nil || s.deps.Jobs == nil {
		return unavailable("job export")
	}
	filter, err := jobFilter(c)
	if err != nil {
		return err
	}
	data, err := s.deps.Export.JobsXLSX(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return attachment(c, "jobs.xlsx", data)
}

// jobFilter reads status, from, to (YYYY-MM-DD) and limit query params.
func jobFilter(c echo.Context) (repository.JobFilter, error) {
	var f repository.JobFilter
	if st := strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))); st != "" {
		switch js := constants.JobStatus(st); js {
		case constants.JobStatusQueued, constants.JobStatusRunning, constants.JobStatusOK, constants.JobStatusFailed:
			f.Status = js
		default:
			return f, common.NewAppError("BAD_STATUS", "status must be one of QUEUED, RUNNING, OK, FAILED", common.ErrInvalidInput)
		}
	}
	parseDate := func(name string) (*time.Time, error) {
		v := strings.TrimSpace(c.QueryParam(name))
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, common.NewAppError("BAD_DATE", name+" must be YYYY-MM-DD", common.ErrInvalidInput)
		}
		return &t, nil
	}
	var err error
	if f.From, err = parseDate("from"); err != nil {
		return f, err
	}
	if f.To, err = parseDate("to"); err != nil {
		return f, err
	}
	if f.To != nil {
		// List treats To as exclusive; include the whole day.
		end := f.To.AddDate(0, 0, 1)
		f.To = &end
	}
	if l := c.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return f, common.NewAppError("BAD_LIMIT", "limit must be a non-negative integer", common.ErrInvalidInput)
		}
		f.Limit = n
	}
	return f, nil
}
