package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalEngine(t *testing.T) {
	cases := map[string]Engine{
		"tesseract": EngineTesseract,
		" Paddle ":  EnginePaddle,
		"EASYOCR":   EngineEasyOCR,
		"doctr":     EngineDocTR,
		"paddleocr": EnginePaddle,
	}
	for in, want := range cases {
		got, ok := CanonicalEngine(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := CanonicalEngine("gpt-vision")
	assert.False(t, ok)
	_, ok = CanonicalEngine("  ")
	assert.False(t, ok)
}

func TestEnginesIsACopy(t *testing.T) {
	e := Engines()
	e[0] = "mutated"
	assert.Equal(t, EngineTesseract, Engines()[0])
}

func TestIsAllowedImage(t *testing.T) {
	assert.True(t, IsAllowedImage("image/png"))
	assert.True(t, IsAllowedImage("IMAGE/JPEG; charset=binary"))
	assert.False(t, IsAllowedImage("application/pdf"))
	assert.Equal(t, "png", NormalizeExt(".PNG"))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusOK.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}
