//go:build gosseract

package ocr

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

// EmbeddedTesseract drives libtesseract in-process. A gosseract client is not
// safe for concurrent use, so calls are serialized.
type EmbeddedTesseract struct {
	client *gosseract.Client
	lock   sync.Mutex
}

func NewEmbeddedTesseract(cfg EmbeddedConfig) (*EmbeddedTesseract, error) {
	client := gosseract.NewClient()
	if len(cfg.Languages) > 0 {
		if err := client.SetLanguage(cfg.Languages...); err != nil {
			client.Close()
			return nil, errors.Join(errors.New("failed to set languages"), err)
		}
	}
	if cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataDir); err != nil {
			client.Close()
			return nil, errors.Join(errors.New("failed to set tessdata prefix"), err)
		}
	}
	if err := client.DisableOutput(); err != nil {
		client.Close()
		return nil, errors.Join(errors.New("failed to disable logs"), err)
	}
	return &EmbeddedTesseract{client: client}, nil
}

func (t *EmbeddedTesseract) Name() string { return string(constants.EngineTesseract) }

func (t *EmbeddedTesseract) Recognize(ctx context.Context, image []byte) (Result, error) {
	start := time.Now()
	res := Result{Engine: t.Name()}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	prepared, err := preprocessForOCR(image)
	if err != nil {
		return res, err
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if err := t.client.SetImageFromBytes(prepared); err != nil {
		return res, errors.Join(errors.New("failed to prepare image for OCR"), err)
	}
	text, err := t.client.Text()
	if err != nil {
		return res, errors.Join(errors.New("OCR process failed"), err)
	}
	res.Text = Normalize(text)

	var engineConf float32
	if boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil {
		confs := make([]float32, 0, len(boxes))
		for _, b := range boxes {
			confs = append(confs, float32(b.Confidence/100))
		}
		engineConf = meanConfidence(confs)
	}
	res.Confidence = blendConfidence(engineConf, heuristicConfidence(res.Text))
	res.Duration = time.Since(start)
	return res, nil
}

// Close releases the underlying tesseract handle.
func (t *EmbeddedTesseract) Close() error {
	return t.client.Close()
}
