package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/llmjson"
)

type stubGenerator struct {
	prompt string
	out    string
	err    error
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

func TestExtractFields(t *testing.T) {
	gen := &stubGenerator{out: "Below is an instruction...\n### Response:\n{invoice_no: INV-1, vendor: Acme Corp, total: 100, currency: usd, tax: N/A}"}
	ex, err := NewExtractor(gen, "Extract.", nil)
	require.NoError(t, err)

	res, err := ex.ExtractFields(context.Background(), "INVOICE INV-1 Acme Corp total 100 USD")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gen.prompt, "### Response:\n"))
	assert.Contains(t, gen.prompt, "INVOICE INV-1")

	assert.Equal(t, "INV-1", res.Record["invoice_no"])
	assert.Nil(t, res.Record["tax"])
	assert.True(t, res.Outcome.NeededRepair())
	assert.Equal(t, llmjson.StageDone, res.Outcome.Terminal())

	assert.Equal(t, "INV-1", res.Fields.InvoiceNumber)
	assert.Equal(t, "Acme Corp", res.Fields.SellerName)
	assert.Equal(t, "100.00", res.Fields.Total)
	assert.Equal(t, "USD", res.Fields.Currency)
	assert.ElementsMatch(t, []string{
		"normalized invoice_no->invoice_number",
		"normalized vendor->seller_name",
	}, res.Warnings)
}

func TestExtractFieldsSchemaWarnings(t *testing.T) {
	gen := &stubGenerator{out: `### Response: {"seller_name": "Acme"}`}
	ex, err := NewExtractor(gen, "", nil)
	require.NoError(t, err)

	res, err := ex.ExtractFields(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "schema /"))
	assert.False(t, res.Outcome.NeededRepair())
}

func TestExtractFieldsErrors(t *testing.T) {
	ctx := context.Background()

	ex, err := NewExtractor(nil, "", nil)
	require.NoError(t, err)
	_, err = ex.ExtractFields(ctx, "text")
	assert.ErrorIs(t, err, ErrNoGenerator)

	ex, _ = NewExtractor(&stubGenerator{}, "", nil)
	_, err = ex.ExtractFields(ctx, "   ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	ex, _ = NewExtractor(&stubGenerator{err: errors.New("connection refused")}, "", nil)
	_, err = ex.ExtractFields(ctx, "text")
	assert.ErrorIs(t, err, common.ErrUnavailable)

	ex, _ = NewExtractor(&stubGenerator{out: "### Response: I could not find an invoice."}, "", nil)
	res, err := ex.ExtractFields(ctx, "text")
	assert.ErrorIs(t, err, common.ErrExtraction)
	assert.ErrorIs(t, err, llmjson.ErrNoOpeningBrace)
	assert.Equal(t, llmjson.StageFailed, res.Outcome.Terminal())
}

func TestExtractFromOutput(t *testing.T) {
	ex, err := NewExtractor(nil, "", nil)
	require.NoError(t, err)

	res, err := ex.ExtractFromOutput(context.Background(), "```json\n{\"total\": 42}\n```")
	require.NoError(t, err)
	assert.Equal(t, 42.0, res.Record["total"])
	assert.Equal(t, "42.00", res.Fields.Total)
	assert.Empty(t, res.Warnings)
}
