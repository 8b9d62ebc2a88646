package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

// ExtractJob is one row of extract_job.
type ExtractJob struct {
	ID            uuid.UUID           `json:"id"`
	Status        constants.JobStatus `json:"status"`
	Stage         string              `json:"stage,omitempty"`
	InputText     string              `json:"input_text"`
	RawOutput     string              `json:"raw_output,omitempty"`
	ExtractedJSON json.RawMessage     `json:"extracted,omitempty"`
	Warnings      []string            `json:"warnings,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
}

// JobFilter narrows List. Zero values mean no constraint.
type JobFilter struct {
	Status constants.JobStatus
	From   *time.Time
	To     *time.Time
	Limit  int // default 100
}

type ExtractJobRepository interface {
	Create(ctx context.Context, inputText string) (*ExtractJob, error)
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, stage, rawOutput string, record []byte, warnings []string) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, stage, rawOutput, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*ExtractJob, error)
	List(ctx context.Context, filter JobFilter) ([]*ExtractJob, error)
}

// ErrInvalidTransition is returned when a job is not in a state that allows the update.
var ErrInvalidTransition = errors.New("invalid job status transition")

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

const jobColumns = `id, status, stage, input_text, raw_output, extracted_json, warnings, error_message, created_at, started_at, finished_at`

func (r *extractJobRepo) Create(ctx context.Context, inputText string) (*ExtractJob, error) {
	job := &ExtractJob{
		ID:        uuid.New(),
		Status:    constants.JobStatusQueued,
		InputText: inputText,
		CreatedAt: time.Now().UTC(),
	}
	q := r.db.rebind(`INSERT INTO extract_job (id, status, stage, input_text, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.SQL.ExecContext(ctx, q, job.ID.String(), string(job.Status), "", inputText, job.CreatedAt); err != nil {
		r.log.Error("extract_job.create.failed", "error", err)
		return nil, common.NewAppError("DB_INSERT", "create extract job", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("extract_job.created", "job_id", job.ID, "input_len", len(inputText))
	return job, nil
}

func (r *extractJobRepo) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	q := r.db.rebind(`UPDATE extract_job SET status = ?, started_at = ? WHERE id = ? AND status = ?`)
	res, err := r.db.SQL.ExecContext(ctx, q, string(constants.JobStatusRunning), time.Now().UTC(), jobID.String(), string(constants.JobStatusQueued))
	if err != nil {
		r.log.Error("extract_job.mark_running.failed", "job_id", jobID, "error", err)
		return common.NewAppError("DB_UPDATE", "mark extract job running", errors.Join(common.ErrDatabase, err))
	}
	if err := r.checkTransition(ctx, res, jobID); err != nil {
		return err
	}
	r.log.Debug("extract_job.running", "job_id", jobID)
	return nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, stage, rawOutput string, record []byte, warnings []string) error {
	var warn sql.NullString
	if len(warnings) > 0 {
		b, err := json.Marshal(warnings)
		if err != nil {
			return fmt.Errorf("marshal warnings: %w", err)
		}
		warn = sql.NullString{String: string(b), Valid: true}
	}
	q := r.db.rebind(`UPDATE extract_job
		SET status = ?, stage = ?, raw_output = ?, extracted_json = ?, warnings = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)`)
	res, err := r.db.SQL.ExecContext(ctx, q,
		string(constants.JobStatusOK), stage, nullString(rawOutput), nullString(string(record)), warn, time.Now().UTC(),
		jobID.String(), string(constants.JobStatusQueued), string(constants.JobStatusRunning),
	)
	if err != nil {
		r.log.Error("extract_job.finish_ok.failed", "job_id", jobID, "error", err)
		return common.NewAppError("DB_UPDATE", "finish extract job", errors.Join(common.ErrDatabase, err))
	}
	if err := r.checkTransition(ctx, res, jobID); err != nil {
		return err
	}
	r.log.Info("extract_job.finished", "job_id", jobID, "status", constants.JobStatusOK, "stage", stage, "warnings", len(warnings))
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, stage, rawOutput, message string) error {
	q := r.db.rebind(`UPDATE extract_job
		SET status = ?, stage = ?, raw_output = ?, error_message = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)`)
	res, err := r.db.SQL.ExecContext(ctx, q,
		string(constants.JobStatusFailed), stage, nullString(rawOutput), message, time.Now().UTC(),
		jobID.String(), string(constants.JobStatusQueued), string(constants.JobStatusRunning),
	)
	if err != nil {
		r.log.Error("extract_job.finish_failed.failed", "job_id", jobID, "error", err)
		return common.NewAppError("DB_UPDATE", "fail extract job", errors.Join(common.ErrDatabase, err))
	}
	if err := r.checkTransition(ctx, res, jobID); err != nil {
		return err
	}
	r.log.Warn("extract_job.finished", "job_id", jobID, "status", constants.JobStatusFailed, "stage", stage, "error", message)
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*ExtractJob, error) {
	q := r.db.rebind(`SELECT ` + jobColumns + ` FROM extract_job WHERE id = ?`)
	job, err := scanJob(r.db.SQL.QueryRowContext(ctx, q, jobID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("extract job %s", jobID), common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("extract_job.get.failed", "job_id", jobID, "error", err)
		return nil, common.NewAppError("DB_QUERY", "get extract job", errors.Join(common.ErrDatabase, err))
	}
	return job, nil
}

func (r *extractJobRepo) List(ctx context.Context, filter JobFilter) ([]*ExtractJob, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, filter.To.UTC())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	q := `SELECT ` + jobColumns + ` FROM extract_job`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.log.Error("extract_job.list.failed", "error", err)
		return nil, common.NewAppError("DB_QUERY", "list extract jobs", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var out []*ExtractJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, common.NewAppError("DB_QUERY", "scan extract job", errors.Join(common.ErrDatabase, err))
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_QUERY", "iterate extract jobs", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

// checkTransition turns "no rows updated" into ErrNotFound or ErrInvalidTransition.
func (r *extractJobRepo) checkTransition(ctx context.Context, res sql.Result, jobID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return common.NewAppError("INVALID_TRANSITION",
		fmt.Sprintf("extract job %s is %s", jobID, job.Status),
		errors.Join(ErrInvalidTransition, common.ErrInvalidInput))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*ExtractJob, error) {
	var (
		job                              ExtractJob
		status                           string
		raw, extracted, warnings, errMsg sql.NullString
		startedAt, finishedAt            sql.NullTime
	)
	if err := s.Scan(&job.ID, &status, &job.Stage, &job.InputText, &raw, &extracted, &warnings, &errMsg,
		&job.CreatedAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	job.RawOutput = raw.String
	job.ErrorMessage = errMsg.String
	if extracted.Valid && extracted.String != "" {
		job.ExtractedJSON = json.RawMessage(extracted.String)
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &job.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
