package sharpness

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBest(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{name: "first maximum wins ties", scores: []float64{1.0, 5.0, 3.0, 5.0}, want: 1},
		{name: "single", scores: []float64{2.5}, want: 0},
		{name: "all equal", scores: []float64{3, 3, 3}, want: 0},
		{name: "last is max", scores: []float64{1, 2, 9}, want: 2},
		{name: "empty", scores: nil, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Best(tt.scores))
		})
	}
}

func TestScoreFlatImageIsZero(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	assert.Zero(t, Score(img))
}

func TestScoreTinyImageIsZero(t *testing.T) {
	assert.Zero(t, Score(image.NewRGBA(image.Rect(0, 0, 2, 10))))
}

func TestScoreCheckerboardBeatsBlur(t *testing.T) {
	sharp := image.NewGray(image.Rect(0, 0, 20, 20))
	soft := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if (x+y)%2 == 0 {
				sharp.SetGray(x, y, color.Gray{Y: 255})
			}
			soft.SetGray(x, y, color.Gray{Y: uint8(x * 10)})
		}
	}
	assert.Greater(t, Score(sharp), Score(soft))
}

func TestScoreRespectsNonZeroOrigin(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x%2 == 0 {
				full.SetGray(x, y, color.Gray{Y: 200})
			}
		}
	}
	sub := full.SubImage(image.Rect(2, 2, 8, 8))
	assert.Greater(t, Score(sub), 0.0)
}
