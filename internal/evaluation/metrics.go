// Package evaluation scores an extracted invoice record against a ground
// truth record.
package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/agext/levenshtein"
)

// Metrics compares one prediction with its ground truth.
type Metrics struct {
	ExactMatch    bool    `json:"exact_match"`
	FieldAccuracy float64 `json:"field_level_accuracy"`
	Levenshtein   float64 `json:"levenshtein"` // 0 = identical serialization
	BLEU          float64 `json:"bleu"`
	F1            float64 `json:"f1"`
	MSE           float64 `json:"mse"`
}

// Evaluate computes every metric. Records are compared as decoded JSON, so
// numbers are float64 and absent values nil.
func Evaluate(truth, pred map[string]any) Metrics {
	ts, ps := serialize(truth), serialize(pred)
	tt, pt := tokenize(ts), tokenize(ps)
	return Metrics{
		ExactMatch:    ExactMatch(truth, pred),
		FieldAccuracy: FieldAccuracy(truth, pred),
		Levenshtein:   LevenshteinDistance(ts, ps),
		BLEU:          SentenceBLEU(tt, pt),
		F1:            TokenF1(tt, pt),
		MSE:           CharMSE(ts, ps),
	}
}

// ExactMatch reports deep equality.
func ExactMatch(truth, pred map[string]any) bool {
	return reflect.DeepEqual(truth, pred)
}

// FieldAccuracy is the share of ground-truth keys whose predicted value is
// deeply equal. Empty ground truth scores 0.
func FieldAccuracy(truth, pred map[string]any) float64 {
	if len(truth) == 0 {
		return 0
	}
	matched := 0
	for k, tv := range truth {
		if pv, ok := pred[k]; ok && reflect.DeepEqual(tv, pv) {
			matched++
		}
	}
	return float64(matched) / float64(len(truth))
}

// LevenshteinDistance is 1 - normalized similarity of the two strings.
func LevenshteinDistance(truth, pred string) float64 {
	if truth == pred {
		return 0
	}
	return 1 - levenshtein.Similarity(truth, pred, nil)
}

// TokenF1 uses the distinct tokens shared by both sides, measured against
// each side's full token count.
func TokenF1(truth, pred []string) float64 {
	if len(truth) == 0 || len(pred) == 0 {
		return 0
	}
	ts := make(map[string]struct{}, len(truth))
	for _, t := range truth {
		ts[t] = struct{}{}
	}
	common := make(map[string]struct{})
	for _, p := range pred {
		if _, ok := ts[p]; ok {
			common[p] = struct{}{}
		}
	}
	precision := float64(len(common)) / float64(len(pred))
	recall := float64(len(common)) / float64(len(truth))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// CharMSE is the mean squared difference of code points over the shorter
// string's length. Two empty strings score 0.
func CharMSE(truth, pred string) float64 {
	tr, pr := []rune(truth), []rune(pred)
	n := min(len(tr), len(pr))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(tr[i]) - float64(pr[i])
		sum += d * d
	}
	return sum / float64(n)
}

// SentenceBLEU scores pred against a single reference with uniform weights
// over 1..4-grams and the "method 4" smoothing for zero counts.
func SentenceBLEU(truth, pred []string) float64 {
	const maxN = 4
	const k = 5.0
	if len(pred) == 0 || len(truth) == 0 {
		return 0
	}

	nums := make([]float64, maxN)
	dens := make([]float64, maxN)
	for n := 1; n <= maxN; n++ {
		nums[n-1], dens[n-1] = clippedPrecision(truth, pred, n)
	}
	if nums[0] == 0 {
		return 0
	}

	hypLen := float64(len(pred))
	var logSum float64
	for i := 0; i < maxN; i++ {
		p := nums[i] / dens[i]
		if nums[i] == 0 && len(pred) > 1 {
			incvnt := float64(i) + k/math.Log(hypLen)
			p = incvnt / dens[i]
		}
		if p <= 0 {
			return 0
		}
		logSum += math.Log(p) / maxN
	}

	return brevityPenalty(len(truth), len(pred)) * math.Exp(logSum)
}

func clippedPrecision(ref, hyp []string, n int) (num, den float64) {
	refCounts := ngrams(ref, n)
	hypCounts := ngrams(hyp, n)
	var total int
	for g, c := range hypCounts {
		total += c
		num += float64(min(c, refCounts[g]))
	}
	return num, float64(max(1, total))
}

func ngrams(tokens []string, n int) map[string]int {
	out := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		key := ""
		for j := i; j < i+n; j++ {
			key += tokens[j] + "\x00"
		}
		out[key]++
	}
	return out
}

func brevityPenalty(refLen, hypLen int) float64 {
	if hypLen > refLen {
		return 1
	}
	if hypLen == 0 {
		return 0
	}
	return math.Exp(1 - float64(refLen)/float64(hypLen))
}

var reToken = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// tokenize splits into words and single punctuation marks.
func tokenize(s string) []string {
	return reToken.FindAllString(s, -1)
}

// serialize renders a record the way the scoring scripts' json.dumps with
// sort_keys=True does: sorted keys, ", " and ": " separators, non-ASCII
// escaped as \uXXXX. Character-level metrics depend on this exact text.
func serialize(v map[string]any) string {
	if v == nil {
		return "null"
	}
	var b strings.Builder
	writeJSON(&b, v)
	return b.String()
}

func writeJSON(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case string:
		writeString(b, t)
	case float64:
		b.WriteString(formatNumber(t))
	case int:
		b.WriteString(strconv.Itoa(t))
	case json.Number:
		b.WriteString(t.String())
	case []any:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteString(", ")
			}
			writeJSON(b, item)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeString(b, k)
			b.WriteString(": ")
			writeJSON(b, t[k])
		}
		b.WriteByte('}')
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			b.WriteString("null")
			return
		}
		b.Write(raw)
	}
}

// formatNumber prints integral values without a fraction, as JSON integers
// decode to whole float64s here. Other values use exponent form only outside
// [1e-4, 1e16), like Python's float repr.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e16:
		return strconv.FormatFloat(f, 'f', 0, 64)
	case math.Abs(f) < 1e-4 || math.Abs(f) >= 1e16:
		return strconv.FormatFloat(f, 'e', -1, 64)
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				fmt.Fprintf(b, `\u%04x`, r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
