// Package sharpness scores frames for focus quality.
package sharpness

import (
	"image"
)

// Score returns the variance of the 4-neighbour Laplacian of the grayscale
// image. Higher is sharper. Images smaller than 3x3 score 0.
func Score(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			gray[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			lap := gray[i-w] + gray[i+w] + gray[i-1] + gray[i+1] - 4*gray[i]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	v := sumSq/float64(n) - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// Best returns the index of the highest score. Ties keep the earliest
// index. It returns -1 for an empty slice.
func Best(scores []float64) int {
	best := -1
	for i, s := range scores {
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}
