package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

type call struct {
	name  string
	args  []string
	stdin []byte
}

type stubRunner struct {
	mu    sync.Mutex
	calls []call
	out   map[string]string // "text" or "tsv"
	err   error
}

func (s *stubRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{name: name, args: args, stdin: stdin})
	if s.err != nil {
		return nil, []byte("Error opening data file"), s.err
	}
	if args[len(args)-1] == "tsv" {
		return []byte(s.out["tsv"]), nil, nil
	}
	return []byte(s.out["text"]), nil, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 12, 12))
	for i := range img.Pix {
		img.Pix[i] = 240
	}
	img.SetGray(5, 5, color.Gray{Y: 0})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tINVOICE\n" +
	"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tTotal\n"

func TestTesseractRecognize(t *testing.T) {
	r := &stubRunner{out: map[string]string{
		"text": "INVOICE  #42\r\n-----\nTotal: $10.00\n",
		"tsv":  sampleTSV,
	}}
	eng := NewTesseract(TesseractConfig{EnableTSVConfidence: true, PSM: 6}, r, nil)

	res, err := eng.Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "tesseract", res.Engine)
	assert.Equal(t, "INVOICE #42\n\nTotal: $10.00", res.Text)

	require.Len(t, r.calls, 2)
	assert.Equal(t, "tesseract", r.calls[0].name)
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng", "--psm", "6"}, r.calls[0].args[:6])
	assert.Equal(t, "tsv", r.calls[1].args[len(r.calls[1].args)-1])
	// preprocessed PNG goes to stdin
	assert.True(t, bytes.HasPrefix(r.calls[0].stdin, []byte("\x89PNG")))

	// 0.7 * 0.8 (tsv) + 0.3 * heuristic
	heur := heuristicConfidence(res.Text)
	assert.InDelta(t, 0.7*0.8+0.3*heur, res.Confidence, 1e-5)
}

func TestTesseractWithoutPreprocessOrTSV(t *testing.T) {
	r := &stubRunner{out: map[string]string{"text": "Rechnung"}}
	eng := NewTesseract(TesseractConfig{Lang: "deu", SkipPreprocess: true}, r, nil)
	res, err := eng.Recognize(context.Background(), []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "Rechnung", res.Text)
	assert.Equal(t, []byte("raw"), r.calls[0].stdin)
	assert.Equal(t, []string{"stdin", "stdout", "-l", "deu"}, r.calls[0].args)
	assert.Len(t, r.calls, 1)
}

func TestTesseractFailure(t *testing.T) {
	r := &stubRunner{err: errors.New("exit status 1")}
	eng := NewTesseract(TesseractConfig{}, r, nil)
	res, err := eng.Recognize(context.Background(), testPNG(t))
	require.Error(t, err)
	assert.Contains(t, res.Warnings, "Error opening data file")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, _, err := NewExecRunner(nil).Run(context.Background(), nil, "invoice-extract-no-such-ocr-binary")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestTesseractRejectsNonImage(t *testing.T) {
	eng := NewTesseract(TesseractConfig{}, &stubRunner{}, nil)
	_, err := eng.Recognize(context.Background(), []byte("%PDF-1.7"))
	require.Error(t, err)
}

func sidecarServer(t *testing.T, payload any, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocr", r.URL.Path)
		if check != nil {
			check(r)
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func TestSidecarLines(t *testing.T) {
	srv := sidecarServer(t, map[string]any{
		"lines": []map[string]any{
			{"text": " INVOICE ", "confidence": 0.9},
			{"text": "", "confidence": 0.1},
			{"text": "Total 10.00", "confidence": 0.7},
		},
	}, func(r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "en,ar", r.FormValue("languages"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "image.png", hdr.Filename)
		b, _ := io.ReadAll(f)
		assert.NotEmpty(t, b)
	})
	defer srv.Close()

	paddle := NewSidecar(SidecarConfig{Name: "paddle", BaseURL: srv.URL + "/", Languages: []string{"en", "ar"}, Separator: "\n"}, nil)
	res, err := paddle.Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "paddle", res.Engine)
	assert.Equal(t, "INVOICE\nTotal 10.00", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)

	easy := NewSidecar(SidecarConfig{Name: "easy", BaseURL: srv.URL, Languages: []string{"en", "ar"}}, nil)
	res, err = easy.Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "INVOICE Total 10.00", res.Text)
}

func TestSidecarFlatResponseWithoutConfidence(t *testing.T) {
	srv := sidecarServer(t, map[string]any{"text": "Invoice total 12.50 USD"}, nil)
	defer srv.Close()

	res, err := NewSidecar(SidecarConfig{Name: "doctr", BaseURL: srv.URL}, nil).Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "Invoice total 12.50 USD", res.Text)
	assert.Equal(t, heuristicConfidence(res.Text), res.Confidence)
	assert.Len(t, res.Warnings, 1)
}

func TestSidecarBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSidecar(SidecarConfig{Name: "easy", BaseURL: srv.URL}, nil).Recognize(context.Background(), testPNG(t))
	assert.ErrorContains(t, err, "502")
}

type fakeEngine struct {
	name string
	text string
	err  error
}

func (f fakeEngine) Name() string { return f.name }
func (f fakeEngine) Recognize(context.Context, []byte) (Result, error) {
	return Result{Engine: f.name, Text: f.text}, f.err
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(nil,
		fakeEngine{name: "tesseract", text: "a"},
		fakeEngine{name: "Paddle", text: "b"},
		fakeEngine{name: "easy", err: errors.New("sidecar down")},
	)
	assert.Equal(t, []string{"easy", "paddle", "tesseract"}, reg.Names())

	e, err := reg.Get("  PaddleOCR ")
	require.NoError(t, err)
	assert.Equal(t, "Paddle", e.Name())

	_, err = reg.Get("doctr")
	assert.ErrorIs(t, err, ErrUnknownEngine)

	res, err := reg.Recognize(context.Background(), "TESSERACT", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Text)

	all := reg.RunAll(context.Background(), nil)
	require.Len(t, all, 3)
	assert.Equal(t, "easy", all[0].Engine)
	assert.Equal(t, "sidecar down", all[0].Error)
	assert.Equal(t, "b", all[1].Text)
	assert.Empty(t, all[2].Error)
}

func TestParseTSVConfidence(t *testing.T) {
	assert.InDelta(t, 0.8, parseTSVConfidence(sampleTSV), 1e-6)
	assert.Zero(t, parseTSVConfidence("header only\n"))
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Zero(t, heuristicConfidence("  "))
	low := heuristicConfidence("hello")
	high := heuristicConfidence("INVOICE 2024-01-31 Total: $1,200.00 " + strings.Repeat("x", 120))
	assert.InDelta(t, 0.2, low, 1e-6)
	assert.InDelta(t, 0.9, high, 1e-6)
	assert.Equal(t, float32(0.5), blendConfidence(0, 0.5))
}

func TestNormalize(t *testing.T) {
	in := "A\t\tB   C  \r\n\r\n\r\n\r\n=====\nD"
	assert.Equal(t, "A B C\n\nD", Normalize(in))
}
