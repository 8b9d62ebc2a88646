package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/llmjson"
)

// ErrNoGenerator is returned by ExtractFields when no model backend is wired.
var ErrNoGenerator = errors.New("no generator configured")

// Extractor runs prompt -> generate -> JSON recovery -> schema check.
// Schema violations never fail an extraction; they are reported as warnings.
type Extractor struct {
	gen         Generator
	instruction string
	schema      *jsonschema.Schema
	logger      *slog.Logger
}

// NewExtractor builds an Extractor. gen may be nil, in which case only
// ExtractFromOutput is usable.
func NewExtractor(gen Generator, instruction string, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema(BuildInvoiceJSONSchema())
	if err != nil {
		return nil, err
	}
	return &Extractor{gen: gen, instruction: instruction, schema: schema, logger: logger}, nil
}

// ExtractFields implements FieldExtractor.
func (e *Extractor) ExtractFields(ctx context.Context, text string) (ExtractResult, error) {
	if e.gen == nil {
		return ExtractResult{}, common.NewAppError("LLM_UNAVAILABLE", "model backend is not configured", errors.Join(common.ErrUnavailable, ErrNoGenerator))
	}
	if strings.TrimSpace(text) == "" {
		return ExtractResult{}, common.NewAppError("EMPTY_INPUT", "text is empty", common.ErrInvalidInput)
	}

	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()
	e.logger.Info("llm.extract.start", "req_id", rid, "job_id", common.JobIDFromContext(ctx), "text_len", len(text))

	output, err := e.gen.Generate(ctx, BuildPrompt(e.instruction, text))
	if err != nil {
		e.logger.Error("llm.extract.generate_failed", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return ExtractResult{}, common.NewAppError("LLM_GENERATE", "model call failed", errors.Join(common.ErrUnavailable, err))
	}

	res, err := e.recover(rid, output)
	e.logger.Info("llm.extract.done",
		"req_id", rid,
		"ok", err == nil,
		"stage", res.Outcome.Terminal(),
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, err
}

// ExtractFromOutput skips generation and recovers a record from text that is
// already model output.
func (e *Extractor) ExtractFromOutput(ctx context.Context, output string) (ExtractResult, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	return e.recover(rid, output)
}

func (e *Extractor) recover(rid, output string) (ExtractResult, error) {
	res := ExtractResult{Raw: output}

	rec, outcome, err := llmjson.ExtractWithOutcome(output)
	res.Outcome = outcome
	if err != nil {
		e.logger.Warn("llm.extract.recover_failed",
			"req_id", rid, "error", err, "stage", outcome.Terminal(), "output_len", len(output))
		return res, common.NewAppError("NO_RECORD", "no JSON record in model output", errors.Join(common.ErrExtraction, err))
	}
	res.Record = rec

	if outcome.NeededRepair() {
		e.logger.Warn("llm.extract.repaired", "req_id", rid, "path", outcome.Path)
	}

	for _, v := range SchemaViolations(e.schema, map[string]any(rec)) {
		res.Warnings = append(res.Warnings, "schema "+v)
	}
	fields, notes := FieldsFromRecord(rec, e.logger)
	res.Fields = fields
	for _, n := range notes {
		res.Warnings = append(res.Warnings, "normalized "+n)
	}
	if len(res.Warnings) > 0 {
		e.logger.Warn("llm.extract.warnings", "req_id", rid, "warnings", res.Warnings)
	}
	return res, nil
}

// String is handy in logs and the CLI.
func (f InvoiceFields) String() string {
	return fmt.Sprintf("invoice %q from %q total %s %s", f.InvoiceNumber, f.SellerName, f.Total, f.Currency)
}
