// Package faceswap implements the Face-Swap Analyzer (FS, C9):
// per-face boundary/color/lighting/compression checks, reduced over
// faces by max.
//
// Grounded on spec §4.8; constants (weights, 10px boundary strip, 20px
// margin) cross-checked against the reference face_swap_detector.py.
package faceswap

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/imageio"
)

const Name = "face_swap"

const (
	weightBoundary    = 0.85
	weightColor       = 0.75
	weightLighting    = 0.70
	weightCompression = 0.80

	boundaryStripPx = 10
	marginPx        = 20

	// coarseBoxWeight scales the per-face score when falling back to
	// the coarse central-box heuristic because no real face detector is
	// configured, reducing that box's weight in fusion.
	coarseBoxWeight = 0.5
)

// Box is an axis-aligned face bounding box with a detector confidence.
type Box struct {
	X, Y, W, H int
	Confidence float64
}

// Detector is the external face-detector collaborator. An empty,
// nil-error result means "no faces found", not an error.
type Detector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]Box, error)
}

// NoopDetector always reports no faces, triggering the coarse
// central-box fallback.
type NoopDetector struct{}

func (NoopDetector) DetectFaces(context.Context, image.Image) ([]Box, error) { return nil, nil }

// Analyze runs the per-face checks and reduces them by max.
func Analyze(ctx context.Context, img *imageio.Image, detector Detector) detect.Report {
	if detector == nil {
		detector = NoopDetector{}
	}

	capped := img.Capped(imageio.CapFrequencyFace)
	boxes, err := detector.DetectFaces(ctx, capped)
	usedCoarse := false
	if err != nil || len(boxes) == 0 {
		usedCoarse = true
		boxes = []Box{coarseCentralBox(capped.Bounds())}
	}

	var best detect.Report
	bestScore := -1.0
	for i, b := range boxes {
		weight := 1.0
		if usedCoarse {
			weight = coarseBoxWeight
		}
		report := analyzeFace(capped, b, weight, i)
		if report.Score > bestScore {
			bestScore = report.Score
			best = report
		}
	}

	if len(boxes) == 0 {
		return detect.Report{Name: Name, Score: 0, Details: map[string]any{"faces_detected": 0}}
	}

	best.Name = Name
	if best.Details == nil {
		best.Details = map[string]any{}
	}
	best.Details["faces_detected"] = len(boxes)
	best.Details["used_coarse_fallback"] = usedCoarse
	return best
}

func coarseCentralBox(b image.Rectangle) Box {
	w, h := b.Dx(), b.Dy()
	cw, ch := int(float64(w)*0.6), int(float64(h)*0.6)
	x := b.Min.X + (w-cw)/2
	y := b.Min.Y + (h-ch)/2
	return Box{X: x, Y: y, W: cw, H: ch, Confidence: 0}
}

func analyzeFace(img image.Image, box Box, weightScale float64, index int) detect.Report {
	face := subImage(img, image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H))

	boundary := checkBoundaryFFT(img, box)
	color := checkFaceVsNeckColor(img, box)
	lighting := checkLighting(face)
	compression := checkCompression(img, box)

	checks := []detect.Check{boundary, color, lighting, compression}
	weights := []float64{weightBoundary * weightScale, weightColor * weightScale, weightLighting * weightScale, weightCompression * weightScale}

	var num, den float64
	for i, c := range checks {
		num += c.Score * weights[i]
		den += weights[i]
	}
	score := 0.0
	if den > 0 {
		score = weightScale * num / den
	}

	return detect.Report{
		Name:   Name,
		Score:  score,
		Checks: checks,
		Details: map[string]any{
			"face_index": index,
		},
	}
}

func subImage(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.Set(x-r.Min.X, y-r.Min.Y, img.At(x, y))
		}
	}
	return out
}

// checkBoundaryFFT inspects the 10px strip above the face's top edge
// for a high-frequency discontinuity, the classic swap-seam artifact.
func checkBoundaryFFT(img image.Image, box Box) detect.Check {
	stripTop := box.Y - boundaryStripPx
	if stripTop < img.Bounds().Min.Y {
		stripTop = img.Bounds().Min.Y
	}
	strip := subImage(img, image.Rect(box.X, stripTop, box.X+box.W, box.Y))
	ratio := highFrequencyRatio(strip)

	switch {
	case ratio > 0.30:
		return check("Boundary Discontinuity", 0.85, detect.StatusFail, "high-frequency seam above face", weightBoundary)
	case ratio > 0.20:
		return check("Boundary Discontinuity", 0.65, detect.StatusWarn, "moderate seam artifact", weightBoundary)
	case ratio < 0.10:
		return check("Boundary Discontinuity", 0.15, detect.StatusPass, "no seam artifact", weightBoundary)
	default:
		return check("Boundary Discontinuity", 0.40, detect.StatusWarn, "borderline boundary", weightBoundary)
	}
}

// highFrequencyRatio is a cheap 1-D proxy: the fraction of adjacent-pixel
// gradient energy concentrated at the highest-frequency (Nyquist)
// differences, without running a full 2-D DFT per face.
func highFrequencyRatio(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2 || h < 1 {
		return 0
	}
	var total, high float64
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			g1 := luma(img.At(b.Min.X+x, b.Min.Y+y))
			g2 := luma(img.At(b.Min.X+x+1, b.Min.Y+y))
			d := math.Abs(g2 - g1)
			total += d
			if x%2 == 1 {
				high += d
			}
		}
	}
	if total == 0 {
		return 0
	}
	return high / total
}

// checkFaceVsNeckColor compares 32-bin per-channel histograms of the
// face region against the strip immediately below it (the neck).
func checkFaceVsNeckColor(img image.Image, box Box) detect.Check {
	face := subImage(img, image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H))
	neckTop := box.Y + box.H
	neck := subImage(img, image.Rect(box.X, neckTop, box.X+box.W, neckTop+box.H/3))

	chiSq := (channelChiSquare(face, neck, 0) + channelChiSquare(face, neck, 1) + channelChiSquare(face, neck, 2)) / 3

	switch {
	case chiSq > 0.5:
		return check("Face vs Neck Color", 0.85, detect.StatusFail, "face/neck color mismatch", weightColor)
	case chiSq > 0.3:
		return check("Face vs Neck Color", 0.65, detect.StatusWarn, "moderate color mismatch", weightColor)
	case chiSq < 0.15:
		return check("Face vs Neck Color", 0.20, detect.StatusPass, "consistent skin tone", weightColor)
	default:
		return check("Face vs Neck Color", 0.45, detect.StatusWarn, "borderline color consistency", weightColor)
	}
}

func channelChiSquare(a, b image.Image, channel int) float64 {
	histA := channelHistogram(a, channel, 32)
	histB := channelHistogram(b, channel, 32)

	var chiSq float64
	for i := range histA {
		sum := histA[i] + histB[i]
		if sum == 0 {
			continue
		}
		diff := histA[i] - histB[i]
		chiSq += (diff * diff) / sum
	}
	return chiSq / 2
}

func channelHistogram(img image.Image, channel, bins int) []float64 {
	hist := make([]float64, bins)
	b := img.Bounds()
	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			var v uint32
			switch channel {
			case 0:
				v = r
			case 1:
				v = g
			default:
				v = bl
			}
			idx := int(float64(v>>8) / 256 * float64(bins))
			if idx >= bins {
				idx = bins - 1
			}
			hist[idx]++
			total++
		}
	}
	if total == 0 {
		return hist
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// checkLighting compares the mean vertical gradient magnitude to the
// mean horizontal one; a swapped face's lighting direction often
// disagrees with the rest of the scene.
func checkLighting(face image.Image) detect.Check {
	b := face.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2 || h < 2 {
		return check("Lighting Consistency", 0.40, detect.StatusWarn, "face region too small", weightLighting)
	}

	var sumDY, sumDX float64
	var n float64
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			l00 := luma(face.At(b.Min.X+x, b.Min.Y+y))
			l10 := luma(face.At(b.Min.X+x+1, b.Min.Y+y))
			l01 := luma(face.At(b.Min.X+x, b.Min.Y+y+1))
			sumDX += math.Abs(l10 - l00)
			sumDY += math.Abs(l01 - l00)
			n++
		}
	}
	if n == 0 || sumDX == 0 {
		return check("Lighting Consistency", 0.40, detect.StatusWarn, "insufficient gradient data", weightLighting)
	}
	ratio := sumDY / sumDX

	switch {
	case ratio > 5:
		return check("Lighting Consistency", 0.80, detect.StatusFail, "lighting direction mismatch", weightLighting)
	case ratio > 3:
		return check("Lighting Consistency", 0.60, detect.StatusWarn, "moderate lighting mismatch", weightLighting)
	case ratio < 2:
		return check("Lighting Consistency", 0.20, detect.StatusPass, "consistent lighting direction", weightLighting)
	default:
		return check("Lighting Consistency", 0.40, detect.StatusWarn, "borderline lighting", weightLighting)
	}
}

// checkCompression compares local variance between the face region and
// the face box grown by a 20px margin on every side (the grown region
// includes the face pixels themselves); composited faces often carry a
// different JPEG generation's compression signature than their
// surroundings.
func checkCompression(img image.Image, box Box) detect.Check {
	face := subImage(img, image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H))
	outer := image.Rect(box.X-marginPx, box.Y-marginPx, box.X+box.W+marginPx, box.Y+box.H+marginPx)
	border := subImage(img, outer)

	faceVar := pixelVariance(face)
	borderVar := pixelVariance(border)

	gap := 0.0
	if borderVar > 0 {
		gap = math.Abs(faceVar-borderVar) / borderVar
	}

	switch {
	case gap > 0.5:
		return check("Compression Consistency", 0.80, detect.StatusFail, "compression signature mismatch", weightCompression)
	case gap > 0.3:
		return check("Compression Consistency", 0.60, detect.StatusWarn, "moderate compression gap", weightCompression)
	case gap < 0.15:
		return check("Compression Consistency", 0.20, detect.StatusPass, "consistent compression", weightCompression)
	default:
		return check("Compression Consistency", 0.40, detect.StatusWarn, "borderline compression gap", weightCompression)
	}
}

func pixelVariance(img image.Image) float64 {
	b := img.Bounds()
	var sum, sq, n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l := luma(img.At(x, y))
			sum += l
			sq += l * l
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / n
	return sq/n - mean*mean
}

func luma(c color.Color) float64 {
	r, g, bl, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
}

func check(layer string, score float64, status detect.Status, reason string, confidence float64) detect.Check {
	return detect.Check{Layer: layer, Status: status, Score: score, Reason: reason, Confidence: confidence}
}
