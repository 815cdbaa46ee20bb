package intrinsic

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/sevrusik/turthsnapbot/internal/config"
	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/imageio"
)

// zigZagOrder mirrors jpegscan's standard JPEG DQT scan order, needed
// here only to hand-assemble synthetic DQT segments for direct tests
// of checkQuantizationFingerprint.
var zigZagOrder = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

const (
	markerSOI = 0xD8
	markerDQT = 0xDB
	markerSOS = 0xDA
)

func buildRawWithDQT(values [64]int) []byte {
	buf := []byte{0xFF, markerSOI}
	buf = append(buf, 0xFF, markerDQT)
	segLen := 2 + 1 + 64
	buf = append(buf, byte(segLen>>8), byte(segLen&0xFF))
	buf = append(buf, 0x00)

	zz := make([]byte, 64)
	for k := 0; k < 64; k++ {
		zz[k] = byte(values[zigZagOrder[k]])
	}
	buf = append(buf, zz...)
	buf = append(buf, 0xFF, markerSOS)
	return buf
}

func uniformTable(v int) [64]int {
	var t [64]int
	for i := range t {
		t[i] = v
	}
	return t
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8((x * 7) % 256), uint8((y * 13) % 256), uint8((x + y) % 256), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("encoding test JPEG: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) *imageio.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8((x * 3) % 256), uint8((y * 5) % 256), uint8((x ^ y) % 256), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	out, err := imageio.Load(buf.Bytes())
	if err != nil {
		t.Fatalf("imageio.Load: %v", err)
	}
	return out
}

func TestAnalyze_ScreenshotModeSkipsOptionalChecks(t *testing.T) {
	img := encodePNG(t, 64, 64)
	r := Analyze(img, Request{Format: "PNG", ScreenshotMode: true})
	if len(r.Checks) != 4 {
		t.Fatalf("len(Checks) = %d, want 4 (the four always-run checks) when ScreenshotMode is set", len(r.Checks))
	}
	if sm, _ := r.Details["screenshot_mode"].(bool); !sm {
		t.Fatalf("Details[screenshot_mode] = %v, want true", r.Details["screenshot_mode"])
	}
}

func TestAnalyze_NonJPEGNonScreenshotSkipsQuantizationOnly(t *testing.T) {
	img := encodePNG(t, 64, 64)
	r := Analyze(img, Request{Format: "PNG", ScreenshotMode: false})
	if len(r.Checks) != 6 {
		t.Fatalf("len(Checks) = %d, want 6 (four always-run plus ICC and PRNU, quantization skipped for non-JPEG)", len(r.Checks))
	}
}

func TestAnalyze_JPEGNonScreenshotRunsAllSevenChecks(t *testing.T) {
	raw := encodeJPEG(t, 64, 64)
	img, err := imageio.Load(raw)
	if err != nil {
		t.Fatalf("imageio.Load: %v", err)
	}
	r := Analyze(img, Request{Format: "JPEG", ScreenshotMode: false})
	if len(r.Checks) != 7 {
		t.Fatalf("len(Checks) = %d, want 7 for a non-screenshot JPEG", len(r.Checks))
	}
}

func TestAnalyze_FraudScoreClampedAndFlagConsistent(t *testing.T) {
	img := encodePNG(t, 64, 64)
	for _, screenshot := range []bool{true, false} {
		r := Analyze(img, Request{Format: "PNG", ScreenshotMode: screenshot})
		fraud, _ := r.Details["fraud_score"].(int)
		if fraud < 0 || fraud > 100 {
			t.Fatalf("fraud_score = %d, out of [0,100]", fraud)
		}
		isAI, _ := r.Details["is_ai_intrinsic"].(bool)
		if isAI != (fraud >= 50) {
			t.Fatalf("is_ai_intrinsic = %v, want %v for fraud_score %d", isAI, fraud >= 50, fraud)
		}
		if r.Score != float64(fraud)/100 {
			t.Fatalf("Score = %v, want fraud_score/100 = %v", r.Score, float64(fraud)/100)
		}
	}
}

func TestPearson_KnownValue(t *testing.T) {
	got := pearson(6, 6, 14, 3)
	want := 0.6667 / 4
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("pearson(6,6,14,3) = %v, want ~%v", got, want)
	}
}

func TestPearson_ZeroSumIsZeroNotNaN(t *testing.T) {
	if got := pearson(0, 5, 0, 3); got != 0 {
		t.Fatalf("pearson with a zero sum = %v, want 0", got)
	}
}

func TestCoefficientOfVariation_EmptyIsZero(t *testing.T) {
	if got := coefficientOfVariation(nil); got != 0 {
		t.Fatalf("coefficientOfVariation(nil) = %v, want 0", got)
	}
}

func TestCoefficientOfVariation_ZeroMeanIsZero(t *testing.T) {
	if got := coefficientOfVariation([]float64{0, 0, 0}); got != 0 {
		t.Fatalf("coefficientOfVariation of all-zero values = %v, want 0", got)
	}
}

func TestCoefficientOfVariation_KnownValue(t *testing.T) {
	got := coefficientOfVariation([]float64{1, 2, 3, 4})
	want := math.Sqrt(1.25) / 2.5
	if math.Abs(got-want) > 0.001 {
		t.Fatalf("coefficientOfVariation([1,2,3,4]) = %v, want ~%v", got, want)
	}
}

func TestCosineSimilarityInts_IdenticalVectorsIsOne(t *testing.T) {
	a := []int{1, 2, 3, 4}
	if got := cosineSimilarityInts(a, a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("cosineSimilarityInts(a,a) = %v, want 1", got)
	}
}

func TestCosineSimilarityInts_OrthogonalIsZero(t *testing.T) {
	a := []int{1, 0}
	b := []int{0, 1}
	if got := cosineSimilarityInts(a, b); got != 0 {
		t.Fatalf("cosineSimilarityInts(orthogonal) = %v, want 0", got)
	}
}

func TestCosineSimilarityInts_EmptyVectorsIsZero(t *testing.T) {
	if got := cosineSimilarityInts(nil, nil); got != 0 {
		t.Fatalf("cosineSimilarityInts(nil, nil) = %v, want 0 (guards the zero-magnitude divide)", got)
	}
}

func TestLookupCamera_MatchIsCaseInsensitiveSubstring(t *testing.T) {
	cameras := map[string]config.QuantizationTable{
		"canon eos r5": {Name: "canon eos r5", Luminance: []int{1}},
	}
	table, ok := lookupCamera(cameras, "Canon EOS R5 Mark II")
	if !ok || table.Name != "canon eos r5" {
		t.Fatalf("lookupCamera should match case-insensitively and by substring, got ok=%v table=%+v", ok, table)
	}
	if _, ok := lookupCamera(cameras, "Nikon Z9"); ok {
		t.Fatalf("lookupCamera should not match an unrelated claimed camera")
	}
}

func TestCheckICCProfile_EmptyDescriptionWarns(t *testing.T) {
	c := checkICCProfile("", config.ICCRules{}, "")
	if c.Status != detect.StatusWarn || c.Score != 0.2 {
		t.Fatalf("checkICCProfile(\"\") = %+v, want Warn/0.2", c)
	}
}

func TestCheckICCProfile_MonitorVendorFails(t *testing.T) {
	rules := config.ICCRules{MonitorVendorSubstrings: []string{"dell"}}
	c := checkICCProfile("Dell U2415 Color LCD", rules, "")
	if c.Status != detect.StatusFail || c.Score != 0.9 {
		t.Fatalf("checkICCProfile(monitor vendor) = %+v, want Fail/0.9", c)
	}
}

func TestCheckICCProfile_EditingSoftwareWarns(t *testing.T) {
	rules := config.ICCRules{EditingSoftwareProfiles: []string{"photoshop"}}
	c := checkICCProfile("Photoshop ICC Profile", rules, "")
	if c.Status != detect.StatusWarn || c.Score != 0.5 {
		t.Fatalf("checkICCProfile(editing software) = %+v, want Warn/0.5", c)
	}
}

func TestCheckICCProfile_CameraVendorMismatchFails(t *testing.T) {
	rules := config.ICCRules{CameraVendorTags: map[string][]string{"canon": {"canon"}}}
	c := checkICCProfile("sRGB IEC61966-2.1", rules, "Canon EOS R5")
	if c.Status != detect.StatusFail || c.Score != 0.55 {
		t.Fatalf("checkICCProfile(vendor mismatch) = %+v, want Fail/0.55", c)
	}
}

func TestCheckICCProfile_CameraVendorMatchPasses(t *testing.T) {
	rules := config.ICCRules{CameraVendorTags: map[string][]string{"canon": {"canon"}}}
	c := checkICCProfile("Canon sRGB Profile", rules, "Canon EOS R5")
	if c.Status != detect.StatusPass {
		t.Fatalf("checkICCProfile(vendor match) = %+v, want Pass", c)
	}
}

func TestCheckICCProfile_GenericProfileNameWarns(t *testing.T) {
	rules := config.ICCRules{GenericProfileNames: []string{"srgb iec61966-2.1"}}
	c := checkICCProfile("sRGB IEC61966-2.1", rules, "")
	if c.Status != detect.StatusWarn || c.Score != 0.3 {
		t.Fatalf("checkICCProfile(generic) = %+v, want Warn/0.3", c)
	}
}

func TestCheckQuantizationFingerprint_NoTablesIsNA(t *testing.T) {
	img := &imageio.Image{Raw: []byte{0x00, 0x01, 0x02}}
	c := checkQuantizationFingerprint(img, config.QuantizationDB{}, "")
	if c.Status != detect.StatusNA {
		t.Fatalf("checkQuantizationFingerprint(non-JPEG raw) = %+v, want NA", c)
	}
}

func TestCheckQuantizationFingerprint_AIPatternMatchFails(t *testing.T) {
	raw := buildRawWithDQT(uniformTable(16))
	img := &imageio.Image{Raw: raw}
	db := config.QuantizationDB{
		AIPatterns: []config.QuantizationTable{
			{Name: "midjourney-v6", Luminance: intSlice(uniformTable(16))},
		},
	}
	c := checkQuantizationFingerprint(img, db, "")
	if c.Status != detect.StatusFail || c.Score != 0.85 {
		t.Fatalf("checkQuantizationFingerprint(AI match) = %+v, want Fail/0.85", c)
	}
}

func TestCheckQuantizationFingerprint_CameraMismatchFails(t *testing.T) {
	raw := buildRawWithDQT(uniformTable(50))
	img := &imageio.Image{Raw: raw}
	skewed := make([]int, 64)
	for i := range skewed {
		if i < 32 {
			skewed[i] = 100
		} else {
			skewed[i] = 1
		}
	}
	db := config.QuantizationDB{
		Cameras: map[string]config.QuantizationTable{
			"apple iphone": {Name: "apple iphone", Luminance: skewed},
		},
	}
	c := checkQuantizationFingerprint(img, db, "Apple iPhone 13")
	if c.Status != detect.StatusFail || c.Score != 0.6 {
		t.Fatalf("checkQuantizationFingerprint(camera mismatch) = %+v, want Fail/0.6", c)
	}
}

func TestCheckQuantizationFingerprint_CameraMatchPasses(t *testing.T) {
	raw := buildRawWithDQT(uniformTable(50))
	img := &imageio.Image{Raw: raw}
	db := config.QuantizationDB{
		Cameras: map[string]config.QuantizationTable{
			"apple iphone": {Name: "apple iphone", Luminance: intSlice(uniformTable(50))},
		},
	}
	c := checkQuantizationFingerprint(img, db, "Apple iPhone 13")
	if c.Status != detect.StatusPass || c.Score != 0.05 {
		t.Fatalf("checkQuantizationFingerprint(camera match) = %+v, want Pass/0.05", c)
	}
}

func TestCheckQuantizationFingerprint_NoClaimNoAIMatchIsPass(t *testing.T) {
	raw := buildRawWithDQT(uniformTable(50))
	img := &imageio.Image{Raw: raw}
	c := checkQuantizationFingerprint(img, config.QuantizationDB{}, "")
	if c.Status != detect.StatusPass || c.Score != 0.1 {
		t.Fatalf("checkQuantizationFingerprint(no claim, no AI match) = %+v, want Pass/0.1", c)
	}
}

func intSlice(t [64]int) []int {
	out := make([]int, 64)
	copy(out, t[:])
	return out
}
