package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

// Runner executes an external OCR binary. Tests swap in a stub.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return execRunner{logger: logger}
}

// Run feeds stdin (when non-nil) to the process and collects both streams.
// A binary missing from PATH is reported as ErrUnavailable.
func (r execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	began := time.Now()
	err := cmd.Run()
	attrs := []any{
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", time.Since(began).Milliseconds(),
	}

	switch {
	case errors.Is(err, exec.ErrNotFound):
		r.logger.Error("ocr.exec.missing", attrs...)
		return nil, nil, common.NewAppError("OCR_BINARY_MISSING", name+" is not installed", errors.Join(common.ErrUnavailable, err))
	case err != nil:
		r.logger.Error("ocr.exec.failed", append(attrs, "error", err, "stderr", clip(stderr.String(), 8<<10))...)
	default:
		r.logger.Debug("ocr.exec.ok", append(attrs, "stdin_bytes", len(stdin), "stdout_bytes", stdout.Len())...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
