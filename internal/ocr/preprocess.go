package ocr

import (
	"image"
	"image/color"
)

// Threshold splits binarized pixels: luma below it becomes black.
const Threshold = 140

// Preprocess crops img to box, converts it to 8-bit luma, applies a 3x3
// median filter with edge replication and binarizes at Threshold. The
// result's bounds start at (0,0). Parts of box outside img are dropped.
func Preprocess(img image.Image, box Box) *image.Gray {
	r := box.Rect().Intersect(img.Bounds())
	w, h := r.Dx(), r.Dy()

	gray := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.Gray))
		}
	}

	out := medianFilter3(gray)
	for i, v := range out.Pix {
		if v < Threshold {
			out.Pix[i] = 0
		} else {
			out.Pix[i] = 255
		}
	}
	return out
}

// medianFilter3 returns the 3x3 median of src, replicating edge pixels.
func medianFilter3(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	if w == 0 || h == 0 {
		return dst
	}

	var window [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				yy := clamp(y+dy, 0, h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := clamp(x+dx, 0, w-1)
					window[n] = src.Pix[yy*src.Stride+xx]
					n++
				}
			}
			for i := 1; i < len(window); i++ {
				for j := i; j > 0 && window[j] < window[j-1]; j-- {
					window[j], window[j-1] = window[j-1], window[j]
				}
			}
			dst.Pix[y*dst.Stride+x] = window[4]
		}
	}
	return dst
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
