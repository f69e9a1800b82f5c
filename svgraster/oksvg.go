package svgraster

import (
	"bytes"
	"context"
	"encoding/xml"
	"image"
	"strconv"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/net/html/charset"
)

var _ Rasterizer = OKSVG{} // assert interface conformance

// default size of a replaced element without
// explicit dimensions, as used by browsers
const (
	defaultWidth  = 300
	defaultHeight = 150
)

// MaxSupersample bounds OKSVG.Supersample; larger values are clamped.
const MaxSupersample = 8

// OKSVG is a Rasterizer parsing the markup with oksvg and
// painting it with a rasterx.ScannerGV.
type OKSVG struct {
	// Strict makes unsupported SVG elements an error
	// instead of silently skipping them.
	Strict bool

	// Supersample, when greater than 1, paints the icon at
	// Supersample times the target size, and then downsamples it
	// (Lanczos filter). Small icons look smoother this way.
	// It is clamped to MaxSupersample.
	Supersample int
}

func (o OKSVG) Rasterize(ctx context.Context, markup []byte, width, height int) (image.Image, error) {
	mode := oksvg.IgnoreErrorMode
	if o.Strict {
		mode = oksvg.StrictErrorMode
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(markup), mode)
	if err != nil {
		return nil, err
	}
	// oksvg stops reading the root attributes at the first length
	// it can't parse (100%, 1em), possibly before the viewBox
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		box, err := intrinsicSize(markup)
		if err != nil {
			return nil, err
		}
		icon.ViewBox.X, icon.ViewBox.Y = box.X, box.Y
		icon.ViewBox.W, icon.ViewBox.H = box.W, box.H
	}

	k := min(max(o.Supersample, 1), MaxSupersample)
	return rasterIcon(icon, width, height, k), nil
}

// rasterIcon stretches the view box of icon over a width x height image,
// painted at `scale` times this size then downsampled.
func rasterIcon(icon *oksvg.SvgIcon, width, height, scale int) image.Image {
	w, h := width*scale, height*scale
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	if scale == 1 {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// viewBox is the user space extent of a document.
type viewBox struct{ X, Y, W, H float64 }

// intrinsicSize reads the root element to find the user space
// extent of a document lacking a usable view box.
func intrinsicSize(markup []byte) (viewBox, error) {
	decoder := xml.NewDecoder(bytes.NewReader(markup))
	decoder.CharsetReader = charset.NewReaderLabel
	for {
		t, err := decoder.Token()
		if err != nil {
			return viewBox{}, err
		}
		root, ok := t.(xml.StartElement)
		if !ok {
			continue
		}
		return rootSize(root.Attr)
	}
}

// rootSize uses the viewBox attribute when valid, then the width and
// height in pixels. Missing or relative dimensions default to 300x150,
// but explicit zero or negative ones are an error.
func rootSize(attrs []xml.Attr) (viewBox, error) {
	box := viewBox{W: defaultWidth, H: defaultHeight}
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "viewBox":
			fields := strings.FieldsFunc(attr.Value, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
			if len(fields) != 4 {
				continue
			}
			var values [4]float64
			valid := true
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					valid = false
					break
				}
				values[i] = v
			}
			if !valid {
				continue
			}
			if values[2] <= 0 || values[3] <= 0 {
				return viewBox{}, ErrZeroDimension
			}
			return viewBox{X: values[0], Y: values[1], W: values[2], H: values[3]}, nil
		}
	}
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "width":
			if v, ok := parseLength(attr.Value); ok {
				if v <= 0 {
					return viewBox{}, ErrZeroDimension
				}
				box.W = v
			}
		case "height":
			if v, ok := parseLength(attr.Value); ok {
				if v <= 0 {
					return viewBox{}, ErrZeroDimension
				}
				box.H = v
			}
		}
	}
	return box, nil
}

// parseLength accepts unit-less and pixel lengths; percentages and
// other units are reported as absent.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
