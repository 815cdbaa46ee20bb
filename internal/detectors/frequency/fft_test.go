package frequency

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/imageio"
)

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

func TestAnalyze_ProducesFourChecksAndBoundedScore(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	img := loadSynthetic(t, 128, 128, func(x, y int) color.Color {
		v := uint8(r.Intn(256))
		return color.RGBA{v, v, v, 255}
	})

	report := Analyze(img)
	if report.Name != Name {
		t.Fatalf("Name = %q, want %q", report.Name, Name)
	}
	if len(report.Checks) != 4 {
		t.Fatalf("len(Checks) = %d, want 4", len(report.Checks))
	}
	if report.Score < 0 || report.Score > 1 {
		t.Fatalf("Score = %v, out of [0,1]", report.Score)
	}
}

func TestAnalyze_FlatImageYieldsStableResult(t *testing.T) {
	img := loadSynthetic(t, 64, 64, func(x, y int) color.Color {
		return color.RGBA{128, 128, 128, 255}
	})

	a := Analyze(img)
	b := Analyze(img)
	if a.Score != b.Score {
		t.Fatalf("Analyze is not deterministic for identical input: %v != %v", a.Score, b.Score)
	}
}

func TestAutocorrelation_PerfectlyPeriodicSeriesIsOne(t *testing.T) {
	series := []float64{1, 2, 1, 2, 1, 2, 1, 2, 1, 2}
	got := autocorrelation(series, 2)
	if got < 0.99 {
		t.Fatalf("autocorrelation at the matching lag = %v, want close to 1.0", got)
	}
}

func TestAutocorrelation_ShortSeriesReturnsZero(t *testing.T) {
	if got := autocorrelation([]float64{1, 2, 3}, 8); got != 0 {
		t.Fatalf("autocorrelation of a series shorter than the lag = %v, want 0", got)
	}
}

func TestCheckHighFrequencyRatio_NoEnergyReadsAsTooLittleEnergy(t *testing.T) {
	s := &sharedArrays{
		w: 2, h: 2, cx: 1, cy: 1,
		power:  [][]float64{{0, 0}, {0, 0}},
		radius: [][]float64{{1.4, 1}, {1, 0}},
	}
	c := checkHighFrequencyRatio(s)
	if c.Status != detect.StatusFail {
		t.Fatalf("zero total energy should read as too-little high-frequency energy (fail), got %+v", c)
	}
}
