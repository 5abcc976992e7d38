package preview

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const overlayBand = 18

// Scale returns an RGBA copy of src at most width pixels wide, keeping the
// aspect ratio. Images already narrower than width are copied unscaled.
func Scale(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	if width <= 0 || b.Dx() <= width {
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	height := max(b.Dy()*width/b.Dx(), 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// OverlayText is the status line drawn over live frames.
func OverlayText(seq uint64, width, height int, dropped uint64) string {
	return fmt.Sprintf("seq %d | %dx%d | drops %d", seq, width, height, dropped)
}

// Overlay draws text on a dark band across the top of img, in place.
func Overlay(img *image.RGBA, text string) {
	if text == "" {
		return
	}
	b := img.Bounds()
	band := image.Rect(b.Min.X, b.Min.Y, b.Max.X, min(b.Min.Y+overlayBand, b.Max.Y))
	draw.Draw(img, band, image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(b.Min.X + 6), Y: fixed.I(b.Min.Y + 13)},
	}
	d.DrawString(text)
}
