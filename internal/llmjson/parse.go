package llmjson

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Record is a parsed JSON object: nested maps, slices, strings, float64
// numbers, booleans and nil for absent values.
type Record = map[string]any

// Stage names a step of a single extraction call.
type Stage string

const (
	StageStart              Stage = "start"
	StageBraceExtracted     Stage = "brace_extracted"
	StageStrictParse        Stage = "strict_parse"
	StageSyntaxRepaired     Stage = "syntax_repaired"
	StageCompletionRepaired Stage = "completion_repaired"
	StageLenientParse       Stage = "lenient_parse"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// Outcome describes how an extraction call went. It is filled in even when
// extraction fails so callers can log or persist it.
type Outcome struct {
	Candidate string  `json:"candidate,omitempty"` // object text cut out of the raw input
	Repaired  string  `json:"repaired,omitempty"`  // text given to the lenient parser; empty if strict parse succeeded
	Path      []Stage `json:"path"`                // stages visited, in order
}

// Terminal returns the last stage reached.
func (o Outcome) Terminal() Stage {
	if len(o.Path) == 0 {
		return StageStart
	}
	return o.Path[len(o.Path)-1]
}

// NeededRepair reports whether the record needed any repair to parse.
func (o Outcome) NeededRepair() bool {
	return o.Repaired != ""
}

func (o *Outcome) visit(s Stage) {
	o.Path = append(o.Path, s)
}

// Extract recovers a normalized record from raw model output.
//
// Structural failures return ErrNoOpeningBrace or ErrNoMatchingBrace; an
// object that could not be repaired returns ErrUnparseableAfterRepair.
func Extract(raw string) (Record, error) {
	rec, _, err := ExtractWithOutcome(raw)
	return rec, err
}

// ExtractWithOutcome is Extract that also reports the stages it went through.
func ExtractWithOutcome(raw string) (Record, Outcome, error) {
	var o Outcome
	o.visit(StageStart)

	candidate, err := ExtractCandidate(raw)
	if err != nil {
		o.visit(StageFailed)
		return nil, o, err
	}
	o.Candidate = candidate
	o.visit(StageBraceExtracted)

	rec, ok := parseSafe(candidate, &o)
	if !ok {
		o.visit(StageFailed)
		return nil, o, ErrUnparseableAfterRepair
	}
	o.visit(StageDone)
	return rec, o, nil
}

// ParseSafe parses s strictly and, failing that, repairs it and parses it
// leniently. The result is normalized. ok is false when nothing worked or the
// top-level value is not an object; it never panics on bad input.
func ParseSafe(s string) (rec Record, ok bool) {
	var o Outcome
	return parseSafe(s, &o)
}

func parseSafe(s string, o *Outcome) (Record, bool) {
	o.visit(StageStrictParse)
	if rec, err := decodeObject(s); err == nil {
		return normalizeRecord(rec), true
	}

	syntaxFixed := RepairSyntax(s)
	o.visit(StageSyntaxRepaired)
	completed := Complete(syntaxFixed, DefaultCompletionAttempts)
	o.visit(StageCompletionRepaired)
	o.Repaired = completed

	o.visit(StageLenientParse)
	rec, err := decodeLenient(completed)
	if err != nil && completed != syntaxFixed {
		// Appended braces can hurt an object that was closed but otherwise
		// broken (a trailing comma, single quotes), so give the lenient
		// parser the uncompleted text as well.
		rec, err = decodeLenient(syntaxFixed)
		if err == nil {
			o.Repaired = syntaxFixed
		}
	}
	if err != nil {
		return nil, false
	}
	return normalizeRecord(rec), true
}

func decodeObject(s string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errNotObject
	}
	return rec, nil
}

// decodeLenient accepts trailing commas, single quotes, unquoted keys and the
// other slips jsonrepair knows how to fix.
func decodeLenient(s string) (Record, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errNotObject
	}
	fixed, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, err
	}
	return decodeObject(fixed)
}
