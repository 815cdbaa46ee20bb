package faceswap

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/sevrusik/turthsnapbot/internal/imageio"
)

type stubDetector struct {
	boxes []Box
	err   error
}

func (s stubDetector) DetectFaces(ctx context.Context, img image.Image) ([]Box, error) {
	return s.boxes, s.err
}

func loadSynthetic(t *testing.T, w, h int, fill func(x, y int) color.Color) *imageio.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding synthetic PNG: %v", err)
	}
	out, err := imageio.Load(buf.Bytes())
	if err != nil {
		t.Fatalf("imageio.Load: %v", err)
	}
	return out
}

func TestAnalyze_NoFaceDetectorUsesCoarseFallback(t *testing.T) {
	img := loadSynthetic(t, 200, 200, func(x, y int) color.Color {
		return color.RGBA{uint8((x + y) % 256), 120, 120, 255}
	})

	r := Analyze(context.Background(), img, nil)

	if r.Name != Name {
		t.Fatalf("Name = %q, want %q", r.Name, Name)
	}
	usedCoarse, _ := r.Details["used_coarse_fallback"].(bool)
	if !usedCoarse {
		t.Fatalf("expected used_coarse_fallback=true when no detector is configured")
	}
	faces, _ := r.Details["faces_detected"].(int)
	if faces != 1 {
		t.Fatalf("faces_detected = %v, want 1 for the coarse-box fallback", r.Details["faces_detected"])
	}
}

func TestAnalyze_DetectorWithFacesSkipsCoarseFallback(t *testing.T) {
	img := loadSynthetic(t, 200, 200, func(x, y int) color.Color {
		return color.RGBA{uint8((x * y) % 256), 100, 100, 255}
	})
	detector := stubDetector{boxes: []Box{
		{X: 40, Y: 40, W: 60, H: 60, Confidence: 0.9},
		{X: 110, Y: 40, W: 60, H: 60, Confidence: 0.85},
	}}

	r := Analyze(context.Background(), img, detector)

	usedCoarse, _ := r.Details["used_coarse_fallback"].(bool)
	if usedCoarse {
		t.Fatalf("expected used_coarse_fallback=false when a real detector finds faces")
	}
	faces, _ := r.Details["faces_detected"].(int)
	if faces != 2 {
		t.Fatalf("faces_detected = %v, want 2", r.Details["faces_detected"])
	}
	if r.Score < 0 || r.Score > 1 {
		t.Fatalf("Score = %v, out of [0,1]", r.Score)
	}
}

func TestAnalyze_DetectorErrorFallsBackToCoarse(t *testing.T) {
	img := loadSynthetic(t, 150, 150, func(x, y int) color.Color {
		return color.RGBA{100, 100, 100, 255}
	})
	detector := stubDetector{err: context.DeadlineExceeded}

	r := Analyze(context.Background(), img, detector)

	usedCoarse, _ := r.Details["used_coarse_fallback"].(bool)
	if !usedCoarse {
		t.Fatalf("a detector error should fall back to the coarse box")
	}
}

func TestCoarseCentralBox_Is60PercentCentered(t *testing.T) {
	b := image.Rect(0, 0, 100, 200)
	box := coarseCentralBox(b)

	if box.W != 60 {
		t.Fatalf("W = %d, want 60 (60%% of 100)", box.W)
	}
	if box.H != 120 {
		t.Fatalf("H = %d, want 120 (60%% of 200)", box.H)
	}
	if box.X != 20 || box.Y != 40 {
		t.Fatalf("box not centered: got (%d,%d), want (20,40)", box.X, box.Y)
	}
}

func TestLuma_WhiteIsBrighterThanBlack(t *testing.T) {
	white := luma(color.RGBA{255, 255, 255, 255})
	black := luma(color.RGBA{0, 0, 0, 255})
	if white <= black {
		t.Fatalf("luma(white)=%v should be greater than luma(black)=%v", white, black)
	}
}
