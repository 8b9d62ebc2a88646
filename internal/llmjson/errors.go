package llmjson

import "errors"

var (
	// ErrNoOpeningBrace means the input has no '{' at all; it is not JSON-shaped.
	ErrNoOpeningBrace = errors.New("no opening brace '{' found in the input")
	// ErrNoMatchingBrace means an object was opened but never balanced before the input ended.
	ErrNoMatchingBrace = errors.New("no matching closing brace '}' found in the input")
	// ErrUnparseableAfterRepair means every repair stage ran and the text still did not parse.
	ErrUnparseableAfterRepair = errors.New("json still unparseable after repair")
)

// IsStructural reports whether err says the input was never an object at all,
// as opposed to an object that was close to valid but could not be repaired.
func IsStructural(err error) bool {
	return errors.Is(err, ErrNoOpeningBrace) || errors.Is(err, ErrNoMatchingBrace)
}
