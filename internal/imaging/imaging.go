// Package imaging prepares document page images for the two-stage parse:
// decoding, padding to square, mapping normalized layout coordinates to
// pixels, and extracting element crops.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// Dimensions records original and padded page sizes so coordinates can be
// mapped back after padding.
type Dimensions struct {
	OriginalW int
	OriginalH int
	PaddedW   int
	PaddedH   int
}

// Decode decodes image bytes into an image. Returns a domain ImageError on
// malformed input.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ImageError("cannot decode image", err)
	}
	return img, nil
}

// PadToSquare pads the image to a white square sized by its larger side,
// centering the original content. The layout model expects square input.
func PadToSquare(img image.Image) (*image.RGBA, Dimensions) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	side := w
	if h > side {
		side = h
	}

	padded := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(padded, padded.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	offX := (side - w) / 2
	offY := (side - h) / 2
	draw.Draw(padded, image.Rect(offX, offY, offX+w, offY+h), img, b.Min, draw.Src)

	return padded, Dimensions{
		OriginalW: w,
		OriginalH: h,
		PaddedW:   side,
		PaddedH:   side,
	}
}

// PixelRect converts a normalized [0,1] bounding box into a clamped pixel
// rectangle in the padded image. Degenerate boxes are widened to at least
// one pixel.
func PixelRect(bbox domain.BBox, dims Dimensions) image.Rectangle {
	x0 := int(bbox.X0 * float64(dims.PaddedW))
	y0 := int(bbox.Y0 * float64(dims.PaddedH))
	x1 := int(bbox.X1 * float64(dims.PaddedW))
	y1 := int(bbox.Y1 * float64(dims.PaddedH))

	x0 = clamp(x0, 0, dims.PaddedW-1)
	y0 = clamp(y0, 0, dims.PaddedH-1)
	x1 = clamp(x1, x0+1, dims.PaddedW)
	y1 = clamp(y1, y0+1, dims.PaddedH)

	return image.Rect(x0, y0, x1, y1)
}

// MapToOriginal maps a rectangle in the padded image back to original-image
// coordinates.
func MapToOriginal(r image.Rectangle, dims Dimensions) domain.BBox {
	padX := (dims.PaddedW - dims.OriginalW) / 2
	padY := (dims.PaddedH - dims.OriginalH) / 2

	x0 := clamp(r.Min.X-padX, 0, dims.OriginalW)
	y0 := clamp(r.Min.Y-padY, 0, dims.OriginalH)
	x1 := clamp(r.Max.X-padX, 0, dims.OriginalW)
	y1 := clamp(r.Max.Y-padY, 0, dims.OriginalH)

	return domain.BBox{X0: float64(x0), Y0: float64(y0), X1: float64(x1), Y1: float64(y1)}
}

// Crop extracts the rectangle from the padded page as a standalone image.
func Crop(padded *image.RGBA, r image.Rectangle) image.Image {
	r = r.Intersect(padded.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), padded, r.Min, draw.Src)
	return out
}

// ResizeMax scales the image down so neither side exceeds maxSide, keeping
// aspect ratio. Images already within bounds are returned unchanged.
func ResizeMax(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	scale := float64(maxSide) / float64(w)
	if h > w {
		scale = float64(maxSide) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// EncodeRef encodes the image as JPEG and wraps it in an ImageRef.
func EncodeRef(img image.Image) (domain.ImageRef, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return domain.ImageRef{}, domain.ImageError("cannot encode crop", err)
	}
	b := img.Bounds()
	return domain.ImageRef{
		Data:   buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
