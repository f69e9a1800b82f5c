// Implements the square raster rendering of SVG documents,
// on top of a pluggable rasterizer (see OKSVG for the default one,
// wrapping oksvg and rasterx).
package svgraster

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/benoitkugler/favigen/svgsource"
	"golang.org/x/image/draw"
)

var (
	ErrInvalidSize   = errors.New("target size must be a positive square")
	ErrZeroDimension = errors.New("svg has a zero dimension")
)

// Rasterizer knows how to decode SVG markup into a bitmap.
// The returned image must have bounds (0, 0, width, height), and
// the markup must be stretched to cover it entirely.
// Implementations should not keep references to the returned image.
type Rasterizer interface {
	Rasterize(ctx context.Context, markup []byte, width, height int) (image.Image, error)
}

// RenderError is returned when a document can't be rendered at Size.
type RenderError struct {
	Size int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render SVG for size %d: %s", e.Size, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer draws documents into square bitmaps.
// It holds no per-render state, so it may be shared
// between goroutines as long as its Rasterizer may.
type Renderer struct {
	rasterizer Rasterizer
}

// NewRenderer returns a renderer using `rasterizer`.
// If it is nil, a default OKSVG is used.
func NewRenderer(rasterizer Rasterizer) *Renderer {
	if rasterizer == nil {
		rasterizer = OKSVG{}
	}
	return &Renderer{rasterizer: rasterizer}
}

// Render allocates a new size x size image and draws `doc` on it.
func (rd *Renderer) Render(ctx context.Context, doc svgsource.Document, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, &RenderError{Size: size, Err: ErrInvalidSize}
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if err := rd.RenderInto(ctx, doc, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// RenderInto draws `doc` over the whole of `dst`, which must be square.
// Once the document is decoded, previous content of `dst` is cleared,
// so that rendering twice into the same buffer gives the same pixels.
// On failure, `dst` is left untouched.
func (rd *Renderer) RenderInto(ctx context.Context, doc svgsource.Document, dst *image.RGBA) error {
	bounds := dst.Bounds()
	size := bounds.Dx()
	if size <= 0 || size != bounds.Dy() {
		return &RenderError{Size: size, Err: ErrInvalidSize}
	}
	if err := ctx.Err(); err != nil {
		return &RenderError{Size: size, Err: err}
	}

	img, err := rd.rasterizer.Rasterize(ctx, doc.Bytes(), size, size)
	if err != nil {
		return &RenderError{Size: size, Err: err}
	}
	if got := img.Bounds(); got.Dx() != size || got.Dy() != size {
		return &RenderError{Size: size, Err: fmt.Errorf("rasterizer returned a %dx%d image", got.Dx(), got.Dy())}
	}

	draw.Draw(dst, bounds, image.Transparent, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, img.Bounds().Min, draw.Over)
	return nil
}
