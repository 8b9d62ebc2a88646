package constants

import "strings"

// Engine names a supported OCR backend.
type Engine string

const (
	EngineTesseract Engine = "tesseract"
	EngineEasyOCR   Engine = "easy"
	EnginePaddle    Engine = "paddle"
	EngineDocTR     Engine = "doctr"
)

var allEngines = []Engine{EngineTesseract, EngineEasyOCR, EnginePaddle, EngineDocTR}

// Engines returns every known engine name in a stable order.
func Engines() []Engine {
	out := make([]Engine, len(allEngines))
	copy(out, allEngines)
	return out
}

// CanonicalEngine resolves user input (any case, surrounding spaces, a few
// aliases) to an engine name.
func CanonicalEngine(input string) (Engine, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Engine{
		"easyocr":   EngineEasyOCR,
		"paddleocr": EnginePaddle,
		"tess":      EngineTesseract,
	}
	if e, ok := synonyms[normalized]; ok {
		return e, true
	}
	for _, e := range allEngines {
		if normalized == string(e) {
			return e, true
		}
	}
	return "", false
}
