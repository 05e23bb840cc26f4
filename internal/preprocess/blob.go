// Package preprocess turns image regions into network input blobs.
package preprocess

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

const (
	SampleSize = 64
	Mean       = 127.5
	Scale      = 1.0 / 127.5
)

// ErrEmptyImage is returned for regions with no pixels.
var ErrEmptyImage = errors.New("image region is empty")

// BlobOptions mirrors the parameters of a classic blob-from-image call:
// square output size, mean subtraction then scaling, optional center crop.
type BlobOptions struct {
	Size  int
	Mean  float32
	Scale float32
	Crop  bool
}

func DefaultBlobOptions() BlobOptions {
	return BlobOptions{
		Size:  SampleSize,
		Mean:  Mean,
		Scale: Scale,
		Crop:  true,
	}
}

// Gray returns a single channel copy of img anchored at the origin. A
// *image.Gray already anchored at the origin is returned as is.
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}

	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		draw.Draw(out, out.Bounds(), g, b.Min, draw.Src)
		return out
	}

	// imaging uses the 0.299/0.587/0.114 luma weights; all channels end up equal
	nrgba := imaging.Grayscale(img)
	for y := 0; y < b.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = row[x*4]
		}
	}
	return out
}

// Crop returns the part of gray inside r, clipped to the image bounds.
func Crop(gray *image.Gray, r image.Rectangle) *image.Gray {
	return gray.SubImage(r.Intersect(gray.Bounds())).(*image.Gray)
}

// Blob converts img into a 1xSizexSize float32 blob in row-major order.
//
// With Crop set the image is scaled so its shorter side matches Size and the
// centre square is kept; otherwise it is stretched to Size x Size.
func Blob(img image.Image, opts BlobOptions) ([]float32, error) {
	if opts.Size <= 0 {
		return nil, errors.Errorf("invalid blob size %d", opts.Size)
	}
	gray := Gray(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}

	size := opts.Size
	var sample *image.NRGBA
	if opts.Crop {
		factor := math.Max(float64(size)/float64(w), float64(size)/float64(h))
		rw := max(size, int(math.Round(float64(w)*factor)))
		rh := max(size, int(math.Round(float64(h)*factor)))
		resized := resize.Resize(uint(rw), uint(rh), gray, resize.Bilinear)
		sample = imaging.CropCenter(resized, size, size)
	} else {
		resized := resize.Resize(uint(size), uint(size), gray, resize.Bilinear)
		sample = imaging.Clone(resized)
	}

	blob := make([]float32, size*size)
	for y := 0; y < size; y++ {
		row := sample.Pix[y*sample.Stride:]
		for x := 0; x < size; x++ {
			blob[y*size+x] = (float32(row[x*4]) - opts.Mean) * opts.Scale
		}
	}
	return blob, nil
}

