package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateIdentical(t *testing.T) {
	rec := map[string]any{"invoice_number": "INV-1", "total": 100.0, "tax": nil}
	m := Evaluate(rec, map[string]any{"tax": nil, "total": 100.0, "invoice_number": "INV-1"})

	assert.True(t, m.ExactMatch)
	assert.Equal(t, 1.0, m.FieldAccuracy)
	assert.Zero(t, m.Levenshtein)
	assert.InDelta(t, 1.0, m.BLEU, 1e-9)
	assert.InDelta(t, 1.0, m.F1, 1e-9)
	assert.Zero(t, m.MSE)
}

func TestEvaluatePartial(t *testing.T) {
	truth := map[string]any{"invoice_number": "INV-1", "total": "100", "currency": "USD", "seller_name": "Acme"}
	pred := map[string]any{"invoice_number": "INV-1", "total": "100.00", "currency": "USD"}
	m := Evaluate(truth, pred)

	assert.False(t, m.ExactMatch)
	assert.Equal(t, 0.5, m.FieldAccuracy)
	assert.Greater(t, m.Levenshtein, 0.0)
	assert.Less(t, m.Levenshtein, 1.0)
	assert.Greater(t, m.BLEU, 0.0)
	assert.Less(t, m.BLEU, 1.0)
	assert.Greater(t, m.F1, 0.0)
	assert.Less(t, m.F1, 1.0)
}

func TestFieldAccuracyEmptyTruth(t *testing.T) {
	assert.Zero(t, FieldAccuracy(map[string]any{}, map[string]any{"a": 1.0}))
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Zero(t, LevenshteinDistance("abc", "abc"))
	assert.Equal(t, 1.0, LevenshteinDistance("abc", "xyz"))
	assert.InDelta(t, 0.25, LevenshteinDistance("abcd", "abcx"), 1e-9)
}

func TestTokenF1(t *testing.T) {
	assert.Zero(t, TokenF1(nil, []string{"a"}))
	// common {a,b}; precision 2/3, recall 2/2
	assert.InDelta(t, 0.8, TokenF1([]string{"a", "b"}, []string{"a", "b", "c"}), 1e-9)
	assert.Zero(t, TokenF1([]string{"a"}, []string{"b"}))
}

func TestCharMSE(t *testing.T) {
	assert.Zero(t, CharMSE("", "abc"))
	// 'a'(97) vs 'c'(99) -> 4, prefix only
	assert.Equal(t, 2.0, CharMSE("ab", "cbzzz"))
}

func TestSentenceBLEU(t *testing.T) {
	ref := tokenize(`{"a": "x y z w"}`)
	assert.InDelta(t, 1.0, SentenceBLEU(ref, ref), 1e-9)
	assert.Zero(t, SentenceBLEU(ref, []string{"nothing", "shared"}))
	assert.Zero(t, SentenceBLEU(ref, nil))

	// shorter hypothesis pays the brevity penalty
	short := SentenceBLEU(ref, ref[:len(ref)-2])
	assert.Greater(t, short, 0.0)
	assert.Less(t, short, 1.0)
}

func TestSerializeMatchesScoringScripts(t *testing.T) {
	rec := map[string]any{
		"total":       100.0,
		"tax":         nil,
		"items":       []any{map[string]any{"qty": 2.0, "price": 0.5}},
		"seller_name": `Café "A"`,
		"ok":          true,
		"tiny":        1e-05,
		"big":         1234567.5,
		"emoji":       "\U0001F600",
		"nl":          "a\nb",
	}
	want := `{"big": 1234567.5, "emoji": "\ud83d\ude00", "items": [{"price": 0.5, "qty": 2}], "nl": "a\nb", "ok": true, ` +
		`"seller_name": "Caf\u00e9 \"A\"", "tax": null, "tiny": 1e-05, "total": 100}`
	assert.Equal(t, want, serialize(rec))
	assert.Equal(t, "null", serialize(nil))
	assert.Equal(t, "{}", serialize(map[string]any{}))

	// one differing character at a known position
	m := Evaluate(map[string]any{"a": "x"}, map[string]any{"a": "y"})
	assert.InDelta(t, 1.0/10.0, m.MSE, 1e-9) // {"a": "x"} is 10 runes
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"{", `"`, "total", `"`, ":", "12", ".", "5", "}"}, tokenize(`{"total":12.5}`))
}

func TestEvaluateBatch(t *testing.T) {
	pairs := []Pair{
		{ID: "a", GroundTruth: map[string]any{"x": 1.0}, Prediction: map[string]any{"x": 1.0}},
		{ID: "b", GroundTruth: map[string]any{"x": 1.0, "y": 2.0}, Prediction: map[string]any{"x": 1.0}},
	}
	rows, sum, err := EvaluateBatch(context.Background(), pairs, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "b", rows[1].ID)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 0.5, sum.ExactMatch)
	assert.Equal(t, 0.75, sum.FieldAccuracy)
}

func TestEvaluateBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := EvaluateBatch(ctx, []Pair{{GroundTruth: map[string]any{}}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}
