package archive

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

// PreviewSize is the longest side of stored previews in pixels.
const PreviewSize = 128

// Preview decodes a PNG or JPEG thumbnail and returns a WebP copy whose
// longest side is at most maxDimension. Smaller images keep their size.
func Preview(data []byte, maxDimension int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail: %w", err)
	}

	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxDimension)
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales width and height down so neither exceeds limit, keeping the
// aspect ratio.
func fit(width, height, limit int) (int, int) {
	if width <= limit && height <= limit {
		return width, height
	}
	if width >= height {
		h := height * limit / width
		if h < 1 {
			h = 1
		}
		return limit, h
	}
	w := width * limit / height
	if w < 1 {
		w = 1
	}
	return w, limit
}
