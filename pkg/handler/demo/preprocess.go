package demo

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
)

// Normalized frame every image is resampled to before recognition.
const (
	normalWidth  = 160
	normalHeight = 60
)

// normalizeGray resamples an image to the normalized grayscale frame.
// An image already in that frame is returned as is, so normalizing a
// previously normalized image never changes its pixels.
func normalizeGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		b := g.Bounds()
		if b.Dx() == normalWidth && b.Dy() == normalHeight {
			return g
		}
	}
	gray := image.NewGray(image.Rect(0, 0, normalWidth, normalHeight))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), src, src.Bounds(), draw.Src, nil)
	return gray
}

type preprocessHandler struct {
	name string
}

func newPreprocess(options map[string]any) *preprocessHandler {
	return &preprocessHandler{name: nameFromOptions(options)}
}

func (h *preprocessHandler) Name() string { return h.name }

func (h *preprocessHandler) Info() map[string]any {
	m := info(h.name, "preprocess")
	m["output_size"] = fmt.Sprintf("%dx%d", normalWidth, normalHeight)
	return m
}

// Process resamples decodable images to the normalized frame in
// grayscale. Bytes that do not decode as an image pass through
// untouched so synthetic test payloads still reach the OCR handler.
func (h *preprocessHandler) Process(raw []byte) handler.Result {
	if len(raw) == 0 {
		return handler.Fail("empty image payload")
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return handler.Ok(raw, map[string]any{
			"passthrough": true,
			"reason":      "payload is not a decodable image",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, normalizeGray(src)); err != nil {
		return handler.Fail(fmt.Sprintf("re-encode normalized image: %v", err))
	}

	return handler.Ok(buf.Bytes(), map[string]any{
		"source_format": format,
		"width":         normalWidth,
		"height":        normalHeight,
		"grayscale":     true,
	})
}
