// Package frequency implements the Frequency-Domain Analyzer (FD, C8):
// four checks derived from a single shared 2-D DFT of the grayscale
// image.
//
// Grounded on spec §4.7, with constants cross-checked against the
// reference fft_detector.py (the 2048 downsample cap, the check
// weights, and the natural hf-ratio band). The 2-D DFT itself is built from gonum's
// 1-D complex FFT applied separably across rows then columns, since
// gonum does not ship a native 2-D transform.
package frequency

import (
	"image"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/imageio"
)

const Name = "frequency_domain"

const (
	weightPeriodicity = 0.85
	weightHFRatio     = 0.80
	weightPowerSlope  = 0.75
	weightPeakCV      = 0.70
)

// sharedArrays holds the DFT-derived matrices every check reads from,
// computed once per Analyze call.
type sharedArrays struct {
	w, h      int
	magnitude [][]float64
	power     [][]float64
	radius    [][]float64
	cx, cy    int
}

// Analyze computes the shared DFT once and runs the four checks.
func Analyze(img *imageio.Image) detect.Report {
	capped := img.Capped(imageio.CapFrequencyFace)
	shared := computeShared(toFloatGray(capped))

	periodicity := checkPeriodicity(shared)
	hfRatio := checkHighFrequencyRatio(shared)
	slope := checkPowerLawSlope(shared)
	peakCV := checkPeriodicPeaks(shared)

	checks := []detect.Check{periodicity, hfRatio, slope, peakCV}
	weights := []float64{weightPeriodicity, weightHFRatio, weightPowerSlope, weightPeakCV}

	var num, den float64
	for i, c := range checks {
		num += c.Score * weights[i]
		den += weights[i]
	}

	return detect.Report{Name: Name, Score: num / den, Checks: checks}
}

// toFloatGray converts an RGBA image to a channel-mean grayscale
// matrix indexed [y][x].
func toFloatGray(img *image.RGBA) [][]float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x] = (float64(r>>8) + float64(g>>8) + float64(bl>>8)) / 3
		}
		out[y] = row
	}
	return out
}

// computeShared runs a row-then-column 1-D FFT to build the 2-D DFT,
// then derives magnitude, power, and a radial-distance map from it.
func computeShared(gray [][]float64) *sharedArrays {
	h := len(gray)
	w := 0
	if h > 0 {
		w = len(gray[0])
	}

	rowFFT := fourier.NewCmplxFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	// Row transform.
	rows := make([][]complex128, h)
	for y := 0; y < h; y++ {
		in := make([]complex128, w)
		for x := 0; x < w; x++ {
			in[x] = complex(gray[y][x], 0)
		}
		rows[y] = rowFFT.Coefficients(nil, in)
	}

	// Column transform over the row-transformed data.
	dft := make([][]complex128, h)
	for y := 0; y < h; y++ {
		dft[y] = make([]complex128, w)
	}
	for x := 0; x < w; x++ {
		in := make([]complex128, h)
		for y := 0; y < h; y++ {
			in[y] = rows[y][x]
		}
		out := colFFT.Coefficients(nil, in)
		for y := 0; y < h; y++ {
			dft[y][x] = out[y]
		}
	}

	magnitude := make([][]float64, h)
	power := make([][]float64, h)
	radius := make([][]float64, h)
	cy, cx := h/2, w/2
	for y := 0; y < h; y++ {
		magnitude[y] = make([]float64, w)
		power[y] = make([]float64, w)
		radius[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			// Shift zero-frequency to the matrix center for radial analysis.
			sy, sx := (y+cy)%h, (x+cx)%w
			mag := cmplx.Abs(dft[y][x])
			magnitude[sy][sx] = mag
			power[sy][sx] = mag * mag
			dy, dx := float64(sy-cy), float64(sx-cx)
			radius[sy][sx] = math.Sqrt(dy*dy + dx*dx)
		}
	}

	return &sharedArrays{w: w, h: h, magnitude: magnitude, power: power, radius: radius, cx: cx, cy: cy}
}

// checkPeriodicity looks for the characteristic 8px JPEG block grid in
// the DC row/column autocorrelation. Absence of the grid (e.g. after
// heavy resampling, or in genuinely non-JPEG content) is itself
// suspicious for an image claiming to be camera-original JPEG.
func checkPeriodicity(s *sharedArrays) detect.Check {
	dcRow := s.magnitude[s.cy]
	dcCol := make([]float64, s.h)
	for y := 0; y < s.h; y++ {
		dcCol[y] = s.magnitude[y][s.cx]
	}

	ac8Row := autocorrelation(dcRow, 8)
	ac16Row := autocorrelation(dcRow, 16)
	ac8Col := autocorrelation(dcCol, 8)
	ac16Col := autocorrelation(dcCol, 16)
	mean := (ac8Row + ac16Row + ac8Col + ac16Col) / 4

	switch {
	case mean > 0.30:
		return check("JPEG Periodicity", 0.1, detect.StatusPass, "strong 8px JPEG grid detected", weightPeriodicity)
	case mean > 0.15:
		return check("JPEG Periodicity", 0.4, detect.StatusWarn, "weak 8px JPEG grid", weightPeriodicity)
	default:
		return check("JPEG Periodicity", 0.8, detect.StatusFail, "no JPEG block grid detected", weightPeriodicity)
	}
}

func autocorrelation(series []float64, lag int) float64 {
	n := len(series)
	if n <= lag {
		return 0
	}
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)

	var num, den float64
	for i := 0; i < n; i++ {
		den += (series[i] - mean) * (series[i] - mean)
	}
	for i := 0; i < n-lag; i++ {
		num += (series[i] - mean) * (series[i+lag] - mean)
	}
	if den == 0 {
		return 0
	}
	// Rescale the lagged sum to the overlap length so a perfectly
	// periodic series scores 1 at its period.
	return (num / float64(n-lag)) / (den / float64(n))
}

// checkHighFrequencyRatio compares energy beyond 0.7*min(cx,cy) radius
// to total energy.
func checkHighFrequencyRatio(s *sharedArrays) detect.Check {
	minC := float64(s.cx)
	if s.cy < s.cx {
		minC = float64(s.cy)
	}
	threshold := 0.7 * minC

	var hfEnergy, totalEnergy float64
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			totalEnergy += s.power[y][x]
			if s.radius[y][x] > threshold {
				hfEnergy += s.power[y][x]
			}
		}
	}
	ratio := 0.0
	if totalEnergy > 0 {
		ratio = hfEnergy / totalEnergy
	}

	switch {
	case ratio < 0.03:
		return check("High-Frequency Energy", 0.85, detect.StatusFail, "too little high-frequency energy", weightHFRatio)
	case ratio > 0.25:
		return check("High-Frequency Energy", 0.75, detect.StatusFail, "excess high-frequency energy", weightHFRatio)
	case ratio >= 0.05 && ratio <= 0.20:
		return check("High-Frequency Energy", 0.15, detect.StatusPass, "natural high-frequency energy", weightHFRatio)
	default:
		return check("High-Frequency Energy", 0.5, detect.StatusWarn, "borderline high-frequency energy", weightHFRatio)
	}
}

// checkPowerLawSlope radially bins the power spectrum and fits the
// slope of log(power) vs log(frequency); natural images follow
// roughly a 1/f^2 power law.
func checkPowerLawSlope(s *sharedArrays) detect.Check {
	maxRadius := int(math.Ceil(math.Hypot(float64(s.cx), float64(s.cy))))
	if maxRadius < 2 {
		return check("Power-Law Slope", 0.5, detect.StatusWarn, "image too small to bin", weightPowerSlope)
	}
	sums := make([]float64, maxRadius+1)
	counts := make([]float64, maxRadius+1)
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			r := int(s.radius[y][x])
			if r < 1 || r > maxRadius {
				continue
			}
			sums[r] += s.power[y][x]
			counts[r]++
		}
	}

	var logF, logP []float64
	for r := 1; r <= maxRadius; r++ {
		if counts[r] == 0 {
			continue
		}
		avg := sums[r] / counts[r]
		if avg <= 0 {
			continue
		}
		logF = append(logF, math.Log(float64(r)))
		logP = append(logP, math.Log(avg))
	}

	slope := linearRegressionSlope(logF, logP)

	switch {
	case slope > -2.5 && slope < -1.5:
		return check("Power-Law Slope", 0.1, detect.StatusPass, "natural 1/f power-law spectrum", weightPowerSlope)
	case slope > -3 && slope < -1:
		return check("Power-Law Slope", 0.4, detect.StatusWarn, "borderline power-law spectrum", weightPowerSlope)
	default:
		return check("Power-Law Slope", 0.8, detect.StatusFail, "unnatural power-law spectrum", weightPowerSlope)
	}
}

func linearRegressionSlope(x, y []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// checkPeriodicPeaks measures the coefficient of variation of the log
// spectrum outside the central 20x20 DC disk; AI upsampling artifacts
// tend to produce sharp, regularly spaced peaks that spike the CV.
func checkPeriodicPeaks(s *sharedArrays) detect.Check {
	var vals []float64
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			if absInt(y-s.cy) < 10 && absInt(x-s.cx) < 10 {
				continue
			}
			m := s.magnitude[y][x]
			if m > 0 {
				vals = append(vals, math.Log(m))
			}
		}
	}
	cv := coefficientOfVariation(vals)

	switch {
	case cv > 1.0:
		return check("Periodic Peaks", 0.85, detect.StatusFail, "strong periodic spectral peaks", weightPeakCV)
	case cv < 0.3:
		return check("Periodic Peaks", 0.75, detect.StatusFail, "unnaturally flat spectrum", weightPeakCV)
	case cv >= 0.4 && cv <= 0.8:
		return check("Periodic Peaks", 0.15, detect.StatusPass, "natural spectral variation", weightPeakCV)
	default:
		return check("Periodic Peaks", 0.5, detect.StatusWarn, "borderline spectral variation", weightPeakCV)
	}
}

func coefficientOfVariation(vals []float64) float64 {
	n := float64(len(vals))
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= n
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	return math.Sqrt(variance) / math.Abs(mean)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func check(layer string, score float64, status detect.Status, reason string, confidence float64) detect.Check {
	return detect.Check{Layer: layer, Status: status, Score: score, Reason: reason, Confidence: confidence}
}
