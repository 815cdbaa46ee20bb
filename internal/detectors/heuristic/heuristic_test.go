package heuristic

import (
	"image"
	"image/color"
	"testing"

	"github.com/sevrusik/turthsnapbot/internal/exifreader"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func checkerImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
			} else {
				img.Set(x, y, color.RGBA{235, 235, 235, 255})
			}
		}
	}
	return img
}

func TestAnalyze_FlatImageWithNoEXIFIsSuspicious(t *testing.T) {
	img := solidImage(64, 64, color.RGBA{120, 120, 120, 255})
	r := Analyze(img, exifreader.Map{})

	if r.Score < 0.5 {
		t.Fatalf("Score = %v, want a high (suspicious) score for a flat, metadata-free image", r.Score)
	}
	if len(r.Checks) != 4 {
		t.Fatalf("len(Checks) = %d, want 4", len(r.Checks))
	}
}

func TestAnalyze_RichEXIFLowersScore(t *testing.T) {
	img := checkerImage(64, 64)
	exif := exifreader.Map{"Make": "Canon", "Model": "EOS R5", "Software": "1.0.0"}

	withExif := Analyze(img, exif)
	withoutExif := Analyze(img, exifreader.Map{})

	if withExif.Score >= withoutExif.Score {
		t.Fatalf("Score with rich EXIF (%v) should be lower than without EXIF (%v)", withExif.Score, withoutExif.Score)
	}
}

func TestAnalyze_ScoreInUnitRange(t *testing.T) {
	imgs := []*image.RGBA{
		solidImage(32, 32, color.RGBA{0, 0, 0, 255}),
		solidImage(32, 32, color.RGBA{255, 255, 255, 255}),
		checkerImage(32, 32),
	}
	for i, img := range imgs {
		r := Analyze(img, exifreader.Map{"Make": "x"})
		if r.Score < 0 || r.Score > 1 {
			t.Fatalf("case %d: Score = %v, out of [0,1]", i, r.Score)
		}
	}
}
