package llmjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSafeValidJSONMatchesStdlib(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"a": 1, "b": [true, null, "x"], "c": {"d": 2.5}}`,
		`{"invoice": {"items": [{"qty": 2, "desc": "pen"}], "total": "10.00"}}`,
	}
	for _, in := range inputs {
		var want map[string]any
		require.NoError(t, json.Unmarshal([]byte(in), &want))

		got, ok := ParseSafe(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseSafeNormalizesPlaceholders(t *testing.T) {
	got, ok := ParseSafe(`{"client_name": "N/A", "total": "100", "note": ""}`)
	require.True(t, ok)

	require.Contains(t, got, "client_name")
	require.Contains(t, got, "note")
	assert.Nil(t, got["client_name"])
	assert.Nil(t, got["note"])
	assert.Equal(t, "100", got["total"])
}

func TestParseSafeRepairs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "bare keys and values",
			in:   `{invoice_number: INV-001, total: 100}`,
			want: map[string]any{"invoice_number": "INV-001", "total": "100"},
		},
		{
			name: "truncated twice",
			in:   `{"a": {"b": "c"`,
			want: map[string]any{"a": map[string]any{"b": "c"}},
		},
		{
			name: "trailing comma",
			in:   `{"a": "b",}`,
			want: map[string]any{"a": "b"},
		},
		{
			name: "single quotes",
			in:   `{'a': 'b'}`,
			want: map[string]any{"a": "b"},
		},
		{
			name: "placeholder after repair",
			in:   `{vendor: n/a, total: 5`,
			want: map[string]any{"vendor": nil, "total": 5.0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSafe(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSafeRejectsNonObjects(t *testing.T) {
	for _, in := range []string{`[1, 2, 3]`, `"just a string"`, `null`, `42`} {
		got, ok := ParseSafe(in)
		assert.False(t, ok, in)
		assert.Nil(t, got, in)
	}
}

func TestExtractScenario(t *testing.T) {
	raw := "### Response:\n```json\n{invoice_number: INV-001, total: 100}\n```"

	rec, outcome, err := ExtractWithOutcome(raw)
	require.NoError(t, err)

	assert.Equal(t, Record{"invoice_number": "INV-001", "total": "100"}, rec)
	assert.Equal(t, `{invoice_number: INV-001, total: 100}`, outcome.Candidate)
	assert.Equal(t, `{"invoice_number": "INV-001", "total": "100"}`, outcome.Repaired)
	assert.True(t, outcome.NeededRepair())
	assert.Equal(t, []Stage{
		StageStart,
		StageBraceExtracted,
		StageStrictParse,
		StageSyntaxRepaired,
		StageCompletionRepaired,
		StageLenientParse,
		StageDone,
	}, outcome.Path)
}

func TestExtractStrictPath(t *testing.T) {
	rec, outcome, err := ExtractWithOutcome("Sure! Here it is:\n" + `{"total": 12.5, "currency": "NAN"}` + "\nAnything else?")
	require.NoError(t, err)

	assert.Equal(t, Record{"total": 12.5, "currency": nil}, rec)
	assert.False(t, outcome.NeededRepair())
	assert.Equal(t, StageDone, outcome.Terminal())
	assert.Equal(t, []Stage{StageStart, StageBraceExtracted, StageStrictParse, StageDone}, outcome.Path)
}

func TestExtractStructuralFailures(t *testing.T) {
	rec, outcome, err := ExtractWithOutcome("I could not find an invoice in this document.")
	assert.ErrorIs(t, err, ErrNoOpeningBrace)
	assert.Nil(t, rec)
	assert.Equal(t, StageFailed, outcome.Terminal())
	assert.Empty(t, outcome.Candidate)

	rec, err = Extract(`{"invoice_number": "INV-9", "items": [{"a": 1}`)
	assert.ErrorIs(t, err, ErrNoMatchingBrace)
	assert.Nil(t, rec)
}

func TestOutcomeTerminalDefault(t *testing.T) {
	assert.Equal(t, StageStart, Outcome{}.Terminal())
}
