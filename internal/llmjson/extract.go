// Package llmjson recovers a JSON object from language-model output.
//
// The model is asked for JSON but routinely answers with an echoed prompt,
// markdown fences, bare keys, bare values or a truncated tail. Extract runs
// the recovery stages in a fixed order and either returns a record or says why
// it could not.
package llmjson

import (
	"strings"
)

const (
	responseMarker = "### Response:"
	codeFence      = "```"
)

// ExtractCandidate returns the first complete top-level {...} object in raw.
//
// Anything up to and including a "### Response:" marker is discarded and all
// markdown fences are removed before scanning. Braces inside double-quoted
// strings are ignored and a backslash-escaped quote does not close a string.
func ExtractCandidate(raw string) (string, error) {
	s := raw
	if _, after, ok := strings.Cut(s, responseMarker); ok {
		s = after
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, codeFence, ""))

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoOpeningBrace
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if ch == '"' && !escaped {
			inString = !inString
		}
		if !inString {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
		escaped = ch == '\\' && !escaped
	}
	return "", ErrNoMatchingBrace
}

// stringMask marks every rune that belongs to a double-quoted string literal,
// quotes included. An unterminated literal runs to the end of the input.
// A backslash escapes only inside a literal; outside one it is an ordinary
// rune, so a quote inserted after it by the repair always opens a literal.
func stringMask(rs []rune) []bool {
	mask := make([]bool, len(rs))
	inString := false
	escaped := false
	for i, ch := range rs {
		switch {
		case !inString:
			if ch == '"' {
				inString = true
				mask[i] = true
			}
		case escaped:
			mask[i] = true
			escaped = false
		default:
			mask[i] = true
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		}
	}
	return mask
}
