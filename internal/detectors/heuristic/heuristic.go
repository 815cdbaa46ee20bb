// Package heuristic implements the Heuristic Analyzer (HA, C4): four
// cheap checks over EXIF richness and pixel statistics, combined by a
// confidence-weighted mean.
//
// Grounded on the reference implementation's MVP heuristic detector:
// the same four checks, the same score bands, the same per-check
// confidence weights.
package heuristic

import (
	"image"
	"math"

	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/exifreader"
)

const Name = "heuristic"

// Per-check confidence weights, fixed by spec §4.3.
const (
	weightEXIF       = 0.70
	weightNoise      = 0.75
	weightSaturation = 0.65
	weightGradient   = 0.80
)

// Analyze runs all four checks and returns the aggregate Report.
func Analyze(img image.Image, exif exifreader.Map) detect.Report {
	gray := toGrayFloat(img)

	exifCheck := checkEXIF(exif)
	noiseCheck := checkNoise(gray)
	satCheck := checkSaturation(img)
	gradCheck := checkGradientEntropy(gray)

	checks := []detect.Check{exifCheck, noiseCheck, satCheck, gradCheck}
	weights := []float64{weightEXIF, weightNoise, weightSaturation, weightGradient}

	var num, den float64
	for i, c := range checks {
		num += c.Score * weights[i]
		den += weights[i]
	}

	return detect.Report{
		Name:   Name,
		Score:  num / den,
		Checks: checks,
	}
}

func checkEXIF(exif exifreader.Map) detect.Check {
	if len(exif) == 0 {
		return check("EXIF Richness", 0.8, detect.StatusFail, "missing camera metadata", weightEXIF)
	}
	_, hasMake := exif["Make"]
	_, hasModel := exif["Model"]
	_, hasSoftware := exif["Software"]
	if hasMake || hasModel || hasSoftware {
		return check("EXIF Richness", 0.1, detect.StatusPass, "camera metadata present", weightEXIF)
	}
	return check("EXIF Richness", 0.6, detect.StatusWarn, "EXIF present without camera tags", weightEXIF)
}

func checkNoise(gray [][]float64) detect.Check {
	variance := meanLocalVariance(gray, 3)
	switch {
	case variance < 5:
		return check("Noise Pattern", 0.9, detect.StatusFail, "unnaturally clean image", weightNoise)
	case variance < 15:
		return check("Noise Pattern", 0.7, detect.StatusFail, "suspiciously clean image", weightNoise)
	case variance > 50:
		return check("Noise Pattern", 0.1, detect.StatusPass, "natural sensor noise detected", weightNoise)
	default:
		return check("Noise Pattern", 0.4, detect.StatusWarn, "borderline noise level", weightNoise)
	}
}

func checkSaturation(img image.Image) detect.Check {
	avgSat := meanSaturation(img)
	switch {
	case avgSat > 180:
		return check("Color Distribution", 0.8, detect.StatusFail, "unnatural color saturation", weightSaturation)
	case avgSat < 30:
		return check("Color Distribution", 0.7, detect.StatusWarn, "unnaturally low saturation", weightSaturation)
	case avgSat > 80 && avgSat < 140:
		return check("Color Distribution", 0.2, detect.StatusPass, "natural color range", weightSaturation)
	default:
		return check("Color Distribution", 0.4, detect.StatusWarn, "borderline saturation", weightSaturation)
	}
}

func checkGradientEntropy(gray [][]float64) detect.Check {
	entropy := gradientHistogramEntropy(gray, 50)
	switch {
	case entropy < 3.0:
		return check("Gradient Smoothness", 0.9, detect.StatusFail, "over-smoothed gradients", weightGradient)
	case entropy < 4.0:
		return check("Gradient Smoothness", 0.7, detect.StatusWarn, "suspicious gradient smoothness", weightGradient)
	case entropy > 4.8:
		return check("Gradient Smoothness", 0.1, detect.StatusPass, "natural texture variation", weightGradient)
	default:
		return check("Gradient Smoothness", 0.4, detect.StatusWarn, "borderline gradient texture", weightGradient)
	}
}

func check(layer string, score float64, status detect.Status, reason string, confidence float64) detect.Check {
	return detect.Check{Layer: layer, Status: status, Score: score, Reason: reason, Confidence: confidence}
}

func toGrayFloat(img image.Image) [][]float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x] = (0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8))
		}
		out[y] = row
	}
	return out
}

// meanLocalVariance computes the mean of a size x size sliding-window
// variance over a grayscale image, the noise-level proxy spec §4.3 uses.
func meanLocalVariance(gray [][]float64, size int) float64 {
	h := len(gray)
	if h == 0 {
		return 0
	}
	w := len(gray[0])
	r := size / 2

	var sum float64
	var count int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean, sq float64
			var n float64
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					yy, xx := y+dy, x+dx
					if yy < 0 || yy >= h || xx < 0 || xx >= w {
						continue
					}
					v := gray[yy][xx]
					mean += v
					sq += v * v
					n++
				}
			}
			if n == 0 {
				continue
			}
			mean /= n
			variance := sq/n - mean*mean
			sum += variance
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func meanSaturation(img image.Image) float64 {
	b := img.Bounds()
	var sum float64
	var count int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rf, gf, bf := float64(r>>8), float64(g>>8), float64(bl>>8)
			max := math.Max(rf, math.Max(gf, bf))
			min := math.Min(rf, math.Min(gf, bf))
			var s float64
			if max > 0 {
				s = (max - min) / max * 255
			}
			sum += s
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// gradientHistogramEntropy bins the gradient-magnitude image into
// nBins buckets and returns the Shannon entropy of the normalized
// histogram, spec §4.3's "gradient entropy" signal.
func gradientHistogramEntropy(gray [][]float64, nBins int) float64 {
	h := len(gray)
	if h < 2 {
		return 0
	}
	w := len(gray[0])
	if w < 2 {
		return 0
	}

	var mags []float64
	maxMag := 0.0
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			gx := gray[y][x+1] - gray[y][x]
			gy := gray[y+1][x] - gray[y][x]
			mag := math.Sqrt(gx*gx + gy*gy)
			mags = append(mags, mag)
			if mag > maxMag {
				maxMag = mag
			}
		}
	}
	if maxMag == 0 || len(mags) == 0 {
		return 0
	}

	hist := make([]int, nBins)
	for _, m := range mags {
		bin := int(m / maxMag * float64(nBins))
		if bin >= nBins {
			bin = nBins - 1
		}
		hist[bin]++
	}

	total := float64(len(mags))
	var entropy float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
