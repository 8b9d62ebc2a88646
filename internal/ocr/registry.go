package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

// Registry holds the engines built at startup, keyed by lower-case name.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	logger  *slog.Logger
}

// Comparison is one engine's outcome in RunAll.
type Comparison struct {
	Result
	Error string `json:"error,omitempty"`
}

func NewRegistry(logger *slog.Logger, engines ...Engine) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{engines: make(map[string]Engine), logger: logger}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// NewRegistryFromConfig registers tesseract plus every sidecar with a URL.
func NewRegistryFromConfig(cfg common.OCRConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry(logger)

	if cfg.TesseractEmbedded {
		emb, err := NewEmbeddedTesseract(EmbeddedConfig{Languages: []string{cfg.TesseractLang}, TessdataDir: cfg.TessdataDir})
		if err != nil {
			return nil, fmt.Errorf("embedded tesseract: %w", err)
		}
		r.Register(emb)
	} else {
		r.Register(NewTesseract(TesseractConfig{
			Binary:              cfg.Tesseract,
			Lang:                cfg.TesseractLang,
			TessdataDir:         cfg.TessdataDir,
			EnableTSVConfidence: cfg.EnableTSVConfidence,
		}, nil, logger))
	}

	client := &http.Client{Timeout: cfg.Timeout}
	sidecars := []struct {
		name constants.Engine
		url  string
		sep  string
	}{
		{constants.EngineEasyOCR, cfg.EasyOCRURL, " "},
		{constants.EnginePaddle, cfg.PaddleURL, "\n"},
		{constants.EngineDocTR, cfg.DocTRURL, " "},
	}
	for _, sc := range sidecars {
		if sc.url == "" {
			continue
		}
		r.Register(NewSidecar(SidecarConfig{
			Name:      string(sc.name),
			BaseURL:   sc.url,
			Client:    client,
			Languages: cfg.Languages,
			Separator: sc.sep,
		}, logger))
	}

	logger.Info("ocr.registry.ready", "engines", r.Names())
	return r, nil
}

// Register adds or replaces an engine.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[strings.ToLower(e.Name())] = e
}

// Get resolves a user supplied engine name, accepting known aliases.
func (r *Registry) Get(name string) (Engine, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := constants.CanonicalEngine(key); ok {
		key = string(canon)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return e, nil
}

// Names lists registered engines, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for k := range r.engines {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Recognize runs the named engine.
func (r *Registry) Recognize(ctx context.Context, name string, image []byte) (Result, error) {
	e, err := r.Get(name)
	if err != nil {
		return Result{}, err
	}
	res, err := e.Recognize(ctx, image)
	if err != nil {
		r.logger.Error("ocr.recognize.failed", "engine", e.Name(), "error", err)
		return res, err
	}
	r.logger.Info("ocr.recognize.ok",
		"engine", e.Name(),
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// RunAll runs every registered engine concurrently on the same image. A
// failing engine does not stop the others; its error is reported inline.
// Results are ordered by engine name.
func (r *Registry) RunAll(ctx context.Context, image []byte) []Comparison {
	names := r.Names()
	out := make([]Comparison, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			e, err := r.Get(name)
			if err != nil {
				out[i] = Comparison{Result: Result{Engine: name}, Error: err.Error()}
				return nil
			}
			res, err := e.Recognize(gctx, image)
			res.Engine = e.Name()
			out[i] = Comparison{Result: res}
			if err != nil {
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("ocr.compare.done", "engines", len(names))
	return out
}
