// Package captcha renders labeled captcha images for building training
// and evaluation datasets. Images carry their label in the filename,
// text before the first underscore, so a dataset directory is
// self-describing.
package captcha

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultCharset matches the lowercase-letter labels the demo
// handlers are trained on.
const DefaultCharset = "abcdefghijklmnopqrstuvwxyz"

// Options controls captcha rendering.
type Options struct {
	Width   int
	Height  int
	Length  int
	Charset string
	// NoiseLines and NoiseDots control the amount of clutter drawn
	// over the text.
	NoiseLines int
	NoiseDots  int
	// Seed fixes the random source when non-zero, for reproducible
	// datasets.
	Seed int64
}

// DefaultOptions returns the rendering defaults.
func DefaultOptions() Options {
	return Options{
		Width:      160,
		Height:     60,
		Length:     4,
		Charset:    DefaultCharset,
		NoiseLines: 4,
		NoiseDots:  80,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Length <= 0 {
		o.Length = d.Length
	}
	if o.Charset == "" {
		o.Charset = d.Charset
	}
	if o.NoiseLines < 0 {
		o.NoiseLines = 0
	}
	if o.NoiseDots < 0 {
		o.NoiseDots = 0
	}
}

// Generator renders captcha images. Safe for concurrent use.
type Generator struct {
	opts Options

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator with the given options. Zero fields fall
// back to DefaultOptions.
func New(opts Options) *Generator {
	opts.normalize()
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Generator{
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// RandomText returns a random label drawn from the charset.
func (g *Generator) RandomText() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	chars := []rune(g.opts.Charset)
	out := make([]rune, g.opts.Length)
	for i := range out {
		out[i] = chars[g.rng.Intn(len(chars))]
	}
	return string(out)
}

// Render draws text into a PNG and returns the encoded bytes.
func (g *Generator) Render(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("captcha: empty text")
	}

	face := basicfont.Face7x13
	runes := []rune(text)

	// Draw the text small, then scale up with nearest neighbor so
	// the glyphs come out blocky and uneven like a real captcha.
	pad := 4
	smallW := len(runes)*face.Advance + 2*pad
	smallH := face.Height + 2*pad
	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	g.mu.Lock()
	baseline := pad + face.Ascent
	for i, r := range runes {
		jitter := g.rng.Intn(3) - 1
		d := &font.Drawer{
			Dst:  small,
			Src:  image.NewUniform(g.randomDarkLocked()),
			Face: face,
			Dot:  fixed.P(pad+i*face.Advance, baseline+jitter),
		}
		d.DrawString(string(r))
	}
	g.mu.Unlock()

	dst := image.NewRGBA(image.Rect(0, 0, g.opts.Width, g.opts.Height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), small, small.Bounds(), draw.Src, nil)

	g.mu.Lock()
	for i := 0; i < g.opts.NoiseLines; i++ {
		g.drawLineLocked(dst)
	}
	for i := 0; i < g.opts.NoiseDots; i++ {
		x := g.rng.Intn(g.opts.Width)
		y := g.rng.Intn(g.opts.Height)
		dst.Set(x, y, g.randomDarkLocked())
	}
	g.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("captcha: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate renders a random label and returns it with the PNG bytes.
func (g *Generator) Generate() (string, []byte, error) {
	text := g.RandomText()
	data, err := g.Render(text)
	if err != nil {
		return "", nil, err
	}
	return text, data, nil
}

// WriteFile renders text into dir as <text>_<uuid>.png and returns
// the written path.
func (g *Generator) WriteFile(dir, text string) (string, error) {
	data, err := g.Render(text)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("captcha: create output dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.png", text, uuid.NewString())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("captcha: write image: %w", err)
	}
	return path, nil
}

func (g *Generator) randomDarkLocked() color.RGBA {
	return color.RGBA{
		R: uint8(g.rng.Intn(128)),
		G: uint8(g.rng.Intn(128)),
		B: uint8(g.rng.Intn(128)),
		A: 255,
	}
}

func (g *Generator) drawLineLocked(img *image.RGBA) {
	b := img.Bounds()
	x0, y0 := g.rng.Intn(b.Dx()), g.rng.Intn(b.Dy())
	x1, y1 := g.rng.Intn(b.Dx()), g.rng.Intn(b.Dy())
	c := g.randomDarkLocked()

	steps := b.Dx()
	if b.Dy() > steps {
		steps = b.Dy()
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + int(t*float64(x1-x0))
		y := y0 + int(t*float64(y1-y0))
		img.Set(x, y, c)
	}
}
