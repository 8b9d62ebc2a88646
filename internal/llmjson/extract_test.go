package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCandidate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "braces inside string literal",
			raw:  `{"a": "b{c}d"} trailing words`,
			want: `{"a": "b{c}d"}`,
		},
		{
			name: "escaped quotes around braces",
			raw:  `{"a": "b\"{c}\"d"}`,
			want: `{"a": "b\"{c}\"d"}`,
		},
		{
			name: "escaped backslash before closing quote",
			raw:  `{"path": "C:\\"} {"b": 2}`,
			want: `{"path": "C:\\"}`,
		},
		{
			name: "stops at first top-level object",
			raw:  `noise {"a": {"b": 1}} {"c": 2}`,
			want: `{"a": {"b": 1}}`,
		},
		{
			name: "response marker and fences",
			raw:  "### Response:\n```json\n{invoice_number: INV-001, total: 100}\n```",
			want: `{invoice_number: INV-001, total: 100}`,
		},
		{
			name: "prompt echo before marker is dropped",
			raw:  "### Instruction:\nreturn {\"x\": 1}\n### Response:\n{\"y\": 2}",
			want: `{"y": 2}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCandidate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCandidateErrors(t *testing.T) {
	_, err := ExtractCandidate("the invoice total is 100")
	assert.ErrorIs(t, err, ErrNoOpeningBrace)
	assert.True(t, IsStructural(err))

	_, err = ExtractCandidate(`{"a": {"b": 1}`)
	assert.ErrorIs(t, err, ErrNoMatchingBrace)
	assert.True(t, IsStructural(err))

	_, err = ExtractCandidate(`{"a": "}"`)
	assert.ErrorIs(t, err, ErrNoMatchingBrace)

	assert.False(t, IsStructural(ErrUnparseableAfterRepair))
}

func TestStringMask(t *testing.T) {
	rs := []rune(`{"a\"b": c}`)
	mask := stringMask(rs)
	require.Len(t, mask, len(rs))

	assert.False(t, mask[0]) // {
	for i := 1; i <= 6; i++ {
		assert.True(t, mask[i], "rune %d (%q) should be inside the literal", i, rs[i])
	}
	assert.False(t, mask[7]) // :
	assert.False(t, mask[9]) // c
}
