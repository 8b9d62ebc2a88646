package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultCompletionAttempts bounds how many closing braces Complete may append.
const DefaultCompletionAttempts = 5

const closingBrace = " }"

var (
	reWhitespace = regexp.MustCompile(`\s+`)

	// An identifier directly followed by a colon that is not already quoted
	// (double or single).
	// RE2 has no lookbehind, hence regexp2.
	reBareKey = mustCompile2(`(?<!["'])\b([A-Za-z_][A-Za-z0-9_\-]*)\b(?=\s*:)`)

	// A colon followed by a word-like run and then a comma or closing brace.
	// The run is lazy so trailing spaces fall to the terminator group.
	reBareValue = mustCompile2(`(:\s*)([A-Za-z0-9][A-Za-z0-9_\-/. ]*?)(\s*[,}])`)

	bareLiterals = map[string]struct{}{"true": {}, "false": {}, "null": {}}
)

func mustCompile2(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	re.MatchTimeout = time.Second
	return re
}

// RepairSyntax collapses whitespace and quotes bare keys and bare scalar values.
//
// It is a heuristic, not a JSON5 grammar: a bare numeric value is quoted like
// any other word, and nested unquoted arrays are left for the lenient parser.
// Matches that start inside a string literal are left alone, so applying the
// repair twice gives the same result as applying it once.
func RepairSyntax(s string) string {
	s = reWhitespace.ReplaceAllString(s, " ")
	s = quoteBareKeys(s)
	s = quoteBareValues(s)
	return strings.TrimSpace(s)
}

func quoteBareKeys(s string) string {
	mask := stringMask([]rune(s))
	out, err := reBareKey.ReplaceFunc(s, func(m regexp2.Match) string {
		if mask[m.Index] {
			return m.String()
		}
		return `"` + m.GroupByNumber(1).String() + `"`
	}, -1, -1)
	if err != nil {
		return s
	}
	return out
}

func quoteBareValues(s string) string {
	mask := stringMask([]rune(s))
	out, err := reBareValue.ReplaceFunc(s, func(m regexp2.Match) string {
		if mask[m.Index] {
			return m.String()
		}
		value := m.GroupByNumber(2).String()
		if _, ok := bareLiterals[value]; ok {
			return m.String()
		}
		return m.GroupByNumber(1).String() + `"` + value + `"` + m.GroupByNumber(3).String()
	}, -1, -1)
	if err != nil {
		return s
	}
	return out
}

// Complete appends " }" until s parses as strict JSON, trying at most
// maxAttempts times (DefaultCompletionAttempts when maxAttempts <= 0).
// It never fails: when the budget runs out the longest candidate is returned
// and the caller decides what to do with it.
func Complete(s string, maxAttempts int) string {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCompletionAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if json.Valid([]byte(s)) {
			return s
		}
		s += closingBrace
	}
	return s
}
