package constants

import "strings"

// AllowedImageMIME holds the image types accepted for OCR and preprocessing.
var AllowedImageMIME = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/bmp":  {},
	"image/tiff": {},
	"image/webp": {},
}

// AllowedExtensions holds the file extensions the CLI accepts for images.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedImage reports whether a sniffed MIME type is an accepted image.
func IsAllowedImage(mime string) bool {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	_, ok := AllowedImageMIME[strings.ToLower(strings.TrimSpace(mime))]
	return ok
}
