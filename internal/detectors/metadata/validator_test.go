package metadata

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sevrusik/turthsnapbot/internal/config"
	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/exifreader"
)

// fakeClock is a deterministic ClockAuthority stand-in so Layer 5's
// escalation path can be tested without a live NTP-backed authority.
type fakeClock struct {
	suspicious bool
	detail     string
}

func (f fakeClock) JudgeFuture(ctx context.Context, captured time.Time) (bool, string) {
	return f.suspicious, f.detail
}

func testRules() config.TrustRules {
	return config.TrustRules{
		TrustedPhotoSoftware: []config.TrustedSoftware{
			{Name: "adobe lightroom", TrustLevel: "high", PenaltyReduction: 70},
		},
		AIGenerationTools:         []string{"midjourney", "dall-e", "stable diffusion"},
		SuspiciousEditingTools:    []string{"gimp"},
		NativePhotoApps:           []string{"camera+"},
		ScreenshotSoftwareKeywords: []string{"screenshot"},
		MonitorProfileKeywords:    []string{"dell u2"},
		StockPhotoServices:        []string{"shutterstock", "getty"},
		KnownSocialMediaPlatforms: []string{"instagram", "linkedin"},
	}
}

func TestValidate_CleanCameraPhoto(t *testing.T) {
	exif := exifreader.Map{
		"Make":             "Apple",
		"Model":            "iPhone 15 Pro",
		"Software":         "17.1",
		"DateTimeOriginal": "2025:01:02 10:00:00",
		"DateTime":         "2025:01:02 10:00:00",
		"GPSLatitude":      "37.0",
		"FNumber":          "1.78",
		"MakerNotes:RunTimeFlags": "1",
	}
	req := Request{ExifData: exif, Format: "JPEG", Mode: detect.ModePhoto, Width: 4032, Height: 3024}
	vr := Validate(context.Background(), req, testRules())

	if vr.FraudScore != 0 {
		t.Fatalf("FraudScore = %d, want 0 for a clean camera-native photo; checks=%+v", vr.FraudScore, vr.Checks)
	}
	if vr.RiskLevel != detect.RiskMinimal {
		t.Fatalf("RiskLevel = %q, want MINIMAL", vr.RiskLevel)
	}
}

func TestValidate_AIGenerationToolIsCritical(t *testing.T) {
	exif := exifreader.Map{"Software": "Midjourney v6"}
	req := Request{ExifData: exif, Format: "PNG", Mode: detect.ModeDocument}
	vr := Validate(context.Background(), req, testRules())

	if vr.FraudScore < scoreAISoftware {
		t.Fatalf("FraudScore = %d, want >= %d when AI tool is in Software field", vr.FraudScore, scoreAISoftware)
	}
	found := false
	for _, f := range vr.RedFlags {
		if f.Layer == "Software Manipulation" && f.Severity == detect.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a critical Software Manipulation red flag, got %+v", vr.RedFlags)
	}
}

func TestValidate_ScreenshotDetection_MonitorICC(t *testing.T) {
	req := Request{
		ExifData:       exifreader.Map{},
		ICCDescription: "Dell U2415 Color LCD",
		Format:         "PNG",
		Mode:           detect.ModeDocument,
	}
	vr := Validate(context.Background(), req, testRules())

	if vr.FraudScore < scoreMonitorProfile {
		t.Fatalf("FraudScore = %d, want >= %d for a monitor ICC profile", vr.FraudScore, scoreMonitorProfile)
	}
}

func TestValidate_ScreenshotDetection_DisplayP3Passes(t *testing.T) {
	exif := exifreader.Map{"Make": "Apple", "Model": "iPhone 15 Pro"}
	req := Request{ExifData: exif, ICCDescription: "Display P3", Format: "JPEG", Mode: detect.ModePhoto}
	vr := Validate(context.Background(), req, testRules())

	for _, c := range vr.Checks {
		if c.Layer == "Screenshot Detection" && c.Status != detect.StatusPass {
			t.Fatalf("Display P3 ICC should pass screenshot detection, got %+v", c)
		}
	}
}

func TestValidate_TrustedSoftwarePenaltyReduction(t *testing.T) {
	// Make/Model/GPS/timestamps are filled in so only the Software
	// Manipulation layer contributes, isolating the penalty-reduction math
	// from the Screenshot Detection layer's separate max-escalation.
	exif := exifreader.Map{
		"Make":             "Canon",
		"Model":            "EOS R5",
		"Software":         "Adobe Lightroom Classic 13.0",
		"DateTimeOriginal": "2025:01:02 10:00:00",
		"DateTime":         "2025:01:02 10:00:00",
		"GPSLatitude":      "37.0",
	}
	req := Request{ExifData: exif, Format: "JPEG", Mode: detect.ModePhoto}
	vr := Validate(context.Background(), req, testRules())

	// scorePhotoshopBase(85) - PenaltyReduction(70) = 15
	want := scorePhotoshopBase - 70
	if vr.FraudScore != want {
		t.Fatalf("FraudScore = %d, want %d after trusted-software penalty reduction", vr.FraudScore, want)
	}
}

func TestValidate_TrustedSoftwareMultiMatchIsDeterministic(t *testing.T) {
	// "Adobe Photoshop Lightroom Classic" contains both "lightroom"
	// (penalty_reduction=50) and "photoshop" (penalty_reduction=30).
	// bestTrustedMatch must consistently pick the first entry in the
	// table's on-disk order ("lightroom"), never varying run-to-run.
	rules := config.TrustRules{
		TrustedPhotoSoftware: []config.TrustedSoftware{
			{Name: "lightroom", TrustLevel: "high", PenaltyReduction: 50},
			{Name: "photoshop", TrustLevel: "medium", PenaltyReduction: 30},
		},
	}
	exif := exifreader.Map{
		"Make":             "Canon",
		"Model":            "EOS R5",
		"Software":         "Adobe Photoshop Lightroom Classic 13.0",
		"DateTimeOriginal": "2025:01:02 10:00:00",
		"DateTime":         "2025:01:02 10:00:00",
		"GPSLatitude":      "37.0",
	}
	req := Request{ExifData: exif, Format: "JPEG", Mode: detect.ModePhoto}

	want := scorePhotoshopBase - 50
	for i := 0; i < 20; i++ {
		vr := Validate(context.Background(), req, rules)
		if vr.FraudScore != want {
			t.Fatalf("run %d: FraudScore = %d, want %d (first match in order, \"lightroom\") every time", i, vr.FraudScore, want)
		}
	}
}

func TestValidate_ClockAuthorityFlagsFutureCapture(t *testing.T) {
	exif := exifreader.Map{
		"Make":             "Canon",
		"Model":            "EOS R5",
		"DateTimeOriginal": "2030:01:02 10:00:00",
		"DateTime":         "2030:01:02 10:00:00",
		"GPSLatitude":      "37.0",
	}
	req := Request{
		ExifData: exif,
		Format:   "JPEG",
		Mode:     detect.ModePhoto,
		Clock:    fakeClock{suspicious: true, detail: "capture is 5y ahead of NTP time"},
	}
	vr := Validate(context.Background(), req, testRules())

	var found bool
	for _, c := range vr.Checks {
		if c.Layer == "Timestamp Consistency" && c.Status == detect.StatusFail && c.Severity == detect.SeverityHigh {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a high-severity Timestamp Consistency failure when the clock authority flags a future capture, got %+v", vr.Checks)
	}
}

func TestValidate_ClockAuthorityNilSkipsEscalation(t *testing.T) {
	// Without a Clock, Layer 5 falls back to judging only the
	// DateTime/DateTimeOriginal gap; a plausible-looking future date in
	// both fields should not trip the clock-authority branch at all.
	exif := exifreader.Map{
		"Make":             "Canon",
		"Model":            "EOS R5",
		"DateTimeOriginal": "2030:01:02 10:00:00",
		"DateTime":         "2030:01:02 10:00:00",
		"GPSLatitude":      "37.0",
	}
	req := Request{ExifData: exif, Format: "JPEG", Mode: detect.ModePhoto}
	vr := Validate(context.Background(), req, testRules())

	for _, c := range vr.Checks {
		if c.Layer == "Timestamp Consistency" && strings.Contains(c.Reason, "NTP-trusted") {
			t.Fatalf("clock-authority escalation reason leaked through with no Clock configured: %+v", c)
		}
	}
}

func TestValidate_MaxLayerEscalationNotAdditive(t *testing.T) {
	// Two independently max-escalating layers (screenshot + AI software)
	// must not sum; the running score takes the higher of the two. GPS
	// and timestamps are filled in so those additive layers stay at zero
	// and don't mask the effect being tested.
	exif := exifreader.Map{
		"Software":         "Midjourney screenshot tool",
		"GPSLatitude":      "37.0",
		"DateTimeOriginal": "2025:01:02 10:00:00",
		"DateTime":         "2025:01:02 10:00:00",
	}
	req := Request{ExifData: exif, Format: "JPEG", Mode: detect.ModeDocument}
	vr := Validate(context.Background(), req, testRules())

	if vr.FraudScore > 100 {
		t.Fatalf("FraudScore = %d, must be clamped to 100", vr.FraudScore)
	}
	if vr.FraudScore != scoreAISoftware {
		t.Fatalf("FraudScore = %d, want max(screenshot, ai_software) = %d, not their sum", vr.FraudScore, scoreAISoftware)
	}
}

func TestValidate_FraudScoreClampedToRange(t *testing.T) {
	exif := exifreader.Map{
		"Software": "midjourney stable diffusion dall-e",
	}
	req := Request{ExifData: exif, ICCDescription: "Dell U2415 Color LCD", Format: "WEBP", Mode: detect.ModeDocument}
	vr := Validate(context.Background(), req, testRules())

	if vr.FraudScore < 0 || vr.FraudScore > 100 {
		t.Fatalf("FraudScore = %d, out of [0,100]", vr.FraudScore)
	}
}

func TestValidate_DocumentModeRelaxesTelegramExemption(t *testing.T) {
	// PHOTO mode with fully stripped EXIF should not escalate GPS/runtime
	// layers (they're N/A, per the telegramMode exemption); DOCUMENT mode
	// runs the same layers without that exemption and must never produce
	// a *lower* fraud score than PHOTO mode for identical evidence.
	exif := exifreader.Map{}
	photoReq := Request{ExifData: exif, Format: "JPEG", Mode: detect.ModePhoto}
	docReq := Request{ExifData: exif, Format: "JPEG", Mode: detect.ModeDocument}

	photoVR := Validate(context.Background(), photoReq, testRules())
	docVR := Validate(context.Background(), docReq, testRules())

	if docVR.FraudScore < photoVR.FraudScore {
		t.Fatalf("DOCUMENT mode fraud_score (%d) must not be lower than PHOTO mode (%d) for identical evidence", docVR.FraudScore, photoVR.FraudScore)
	}
}
