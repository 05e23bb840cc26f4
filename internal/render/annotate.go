// Package render turns task outputs into an annotated image or a printed
// results table.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/Brownie44l1/ferplus/internal/task"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

var (
	TextColor = color.RGBA{R: 255, G: 220, B: 0, A: 255}
	BoxColor  = color.RGBA{R: 0, G: 200, B: 255, A: 255}
)

// Annotate draws the face rectangles and the text items of g onto a copy of src.
func Annotate(src image.Image, g task.Graphics, regions []task.Rect) image.Image {
	dc := gg.NewContextForImage(src)
	b := src.Bounds()

	size := math.Max(12, float64(b.Dy())/30)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))

	dc.SetColor(BoxColor)
	dc.SetLineWidth(math.Max(1, size/8))
	for _, r := range regions {
		rect := r.Rectangle()
		dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
		dc.Stroke()
	}

	dc.SetColor(TextColor)
	for _, item := range g.Items {
		// items are anchored at their top-left corner
		dc.DrawStringAnchored(item.Text, item.X, item.Y, 0, 1)
	}
	return dc.Image()
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	return gg.SavePNG(path, img)
}
