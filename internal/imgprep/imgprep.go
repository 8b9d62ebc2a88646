// Package imgprep cleans up scanned invoices before OCR: grayscale, upscale,
// denoise and binarize with a locally adaptive threshold.
package imgprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	// extra decoders registered with image.Decode
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

var (
	ErrEmptyImage       = errors.New("empty image")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Config tunes Preprocess. The zero value is not useful; start from Default.
type Config struct {
	Scale      float64 // resize factor, 1.5 = 150%
	BlurSigma  float64 // denoise blur, ~5x5 gaussian
	BlockSigma float64 // gaussian window for the local threshold mean, ~11x11
	Offset     int     // C: subtracted from the local mean
}

// Default mirrors the classic OpenCV recipe: 150% linear resize, 5x5 blur,
// adaptive gaussian threshold with an 11px block and C=2.
func Default() Config {
	return Config{Scale: 1.5, BlurSigma: 1.1, BlockSigma: 2.0, Offset: 2}
}

// ThresholdOnly binarizes at the original size without denoising.
func ThresholdOnly() Config {
	return Config{Scale: 1, BlockSigma: 2.0, Offset: 2}
}

// Decode sniffs the content type and decodes the image, honoring EXIF orientation.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	mt := mimetype.Detect(data)
	if !constants.IsAllowedImage(mt.String()) {
		return nil, mt.String(), fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, mt.String(), fmt.Errorf("decode %s: %w", mt.String(), err)
	}
	return img, mt.String(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Preprocess returns the grayscale source and the binarized, upscaled image.
func Preprocess(img image.Image, cfg Config) (gray, cleaned *image.Gray) {
	g := imaging.Grayscale(img)
	gray = toGray(g)

	b := g.Bounds()
	w := int(float64(b.Dx()) * cfg.Scale)
	h := int(float64(b.Dy()) * cfg.Scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	resized := imaging.Resize(g, w, h, imaging.Linear)

	blurred := resized
	if cfg.BlurSigma > 0 {
		blurred = imaging.Blur(resized, cfg.BlurSigma)
	}

	// A 1x1 morphological open is the identity, so the threshold output is final.
	cleaned = adaptiveThreshold(toGray(blurred), cfg.BlockSigma, cfg.Offset)
	return gray, cleaned
}

// adaptiveThreshold sets a pixel white when it is brighter than the gaussian
// weighted mean of its neighbourhood minus offset, black otherwise.
func adaptiveThreshold(src *image.Gray, sigma float64, offset int) *image.Gray {
	mean := src
	if sigma > 0 {
		mean = toGray(imaging.Blur(src, sigma))
	}
	b := src.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := int(src.GrayAt(x, y).Y)
			m := int(mean.GrayAt(x-b.Min.X, y-b.Min.Y).Y)
			if v > m-offset {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return out
}
