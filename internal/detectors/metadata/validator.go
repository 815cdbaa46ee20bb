// Package metadata implements the Metadata Validator (MV, C5): an
// eleven-layer rules engine over EXIF/XMP evidence that produces an
// integer fraud score 0-100.
//
// Grounded on the reference implementation's layered EXIF validator:
// the layer ordering, the scoring weights, and the per-layer
// escalation behavior (add vs. "set running score to max") are carried
// over unchanged; the software trust list's per-tool penalty
// reductions come from the same source.
package metadata

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sevrusik/turthsnapbot/internal/config"
	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/exifreader"
)

// ClockAuthority judges whether an EXIF capture timestamp is
// suspiciously ahead of a trusted external clock. timeauthority.Authority
// implements this; tests can supply a deterministic fake instead of a
// live NTP-backed one.
type ClockAuthority interface {
	JudgeFuture(ctx context.Context, captured time.Time) (suspicious bool, detail string)
}

const Name = "metadata_validator"

// Fixed scoring weights, spec §4.4.
const (
	scoreAppleRuntimeMissing = 95
	scoreMonitorProfile      = 95
	scoreAISoftware          = 98
	scorePhotoshopBase       = 85
	scoreGPSModernMissing    = 70
	scoreGPSMissing          = 30
	scoreTimestampModified   = 75
	scoreLensMismatch        = 60
	scorePhysicsViolation    = 88
	scoreFormatPNG           = 40
	scoreFormatWEBP          = 50
	scoreMessagingApp        = 80
)

// Request bundles everything MV needs beyond the merged ExifMap; all
// fields besides ExifData are optional context.
type Request struct {
	ExifData       exifreader.Map
	XMP            []byte // raw <x:xmpmeta>...</x:xmpmeta> block, may be nil
	ICCDescription string // ICC profile description string, may be empty
	Format         string // "JPEG", "PNG", "WEBP", ...
	ImageBytes     []byte
	Width, Height  int
	Mode           detect.Mode
	SourcePlatform string // optional hint: "linkedin", "instagram", ...
	Clock          ClockAuthority // optional; nil means Layer 5 judges only the DateTime/DateTimeOriginal gap
}

// Validate runs all eleven layers in order and reduces them to a
// ValidatorReport.
func Validate(ctx context.Context, req Request, rules config.TrustRules) detect.ValidatorReport {
	telegramMode := req.Mode == detect.ModePhoto

	var checks []detect.Check
	var redFlags []detect.RedFlag
	score := 0

	layers := []func() (detect.Check, int, bool){
		func() (detect.Check, int, bool) { return layerCameraAuthenticity(req.ExifData) },
		func() (detect.Check, int, bool) { return layerAppleRuntime(req.ExifData, telegramMode) },
		func() (detect.Check, int, bool) { return layerScreenshot(req.ExifData, req.ICCDescription, rules) },
		func() (detect.Check, int, bool) { return layerSoftwareManipulation(req.ExifData, rules) },
		func() (detect.Check, int, bool) { return layerGPS(req.ExifData, telegramMode) },
		func() (detect.Check, int, bool) { return layerTimestamps(ctx, req.ExifData, rules, telegramMode, req.Clock) },
		func() (detect.Check, int, bool) { return layerXMPAICredits(req.XMP) },
		func() (detect.Check, int, bool) { return layerPhysics(req.ExifData) },
		func() (detect.Check, int, bool) { return layerLensConsistency(req.ExifData) },
		func() (detect.Check, int, bool) { return layerFormat(req.Format) },
		func() (detect.Check, int, bool) {
			return layerMessagingApp(req, rules)
		},
	}

	// Layers that escalate via "set running score to max" rather than
	// additive accumulation, per spec §4.4.
	maxLayers := map[string]bool{
		"Screenshot Detection":      true,
		"Software Manipulation":     true,
		"Google AI Credits":        true,
		"Messaging App Detection":   true,
	}

	for _, layer := range layers {
		c, contribution, isRedFlag := layer()
		checks = append(checks, c)

		switch {
		case contribution < 0:
			// Camera-authenticity bonus always accumulates additively.
			score += contribution
		case maxLayers[c.Layer] && contribution > 0 &&
			!(c.Layer == "Software Manipulation" && contribution != scoreAISoftware):
			// Only an AI-tool hit escalates Software Manipulation;
			// trusted-tool and editor penalties add like other layers.
			if contribution > score {
				score = contribution
			}
		default:
			score += contribution
		}

		if isRedFlag {
			requiresVisualProof, _ := c.Details["requires_visual_proof"].(bool)
			redFlags = append(redFlags, detect.RedFlag{
				Layer:               c.Layer,
				Severity:            c.Severity,
				Reason:              c.Reason,
				Score:               contribution,
				TrustLevel:          stringDetail(c, "trust_level"),
				RequiresVisualProof: requiresVisualProof,
			})
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	risk := detect.RiskLevelForScore(score)

	return detect.ValidatorReport{
		Report: detect.Report{
			Name:   Name,
			Score:  float64(score) / 100,
			Checks: checks,
			Details: map[string]any{
				"make":  req.ExifData["Make"],
				"model": req.ExifData["Model"],
			},
		},
		FraudScore: score,
		RiskLevel:  risk,
		RedFlags:   redFlags,
		Verdict:    verdictMessage(score),
	}
}

func stringDetail(c detect.Check, key string) string {
	if c.Details == nil {
		return ""
	}
	if v, ok := c.Details[key].(string); ok {
		return v
	}
	return ""
}

func verdictMessage(score int) string {
	switch {
	case score >= 80:
		return "High probability of AI generation or manipulation"
	case score >= 60:
		return "Suspicious indicators detected, manual review recommended"
	case score >= 40:
		return "Some concerns identified, additional verification suggested"
	case score >= 20:
		return "Minor anomalies detected, likely legitimate"
	default:
		return "Strong indicators of authentic photograph"
	}
}

// Layer 0: Camera Authenticity. A verified serial number pair is a
// smoking gun for a real camera — AI generators cannot fabricate one —
// so it contributes a negative (bonus) score.
func layerCameraAuthenticity(exif exifreader.Map) (detect.Check, int, bool) {
	cameraSerial := firstNonEmpty(exif, "SerialNumber", "EXIF:SerialNumber", "MakerNotes:InternalSerialNumber", "MakerNotes:SerialNumber")
	lensSerial := firstNonEmpty(exif, "LensSerialNumber", "EXIF:LensSerialNumber", "MakerNotes:LensSerialNumber")

	switch {
	case cameraSerial != "" && lensSerial != "":
		return detect.Check{Layer: "Camera Authenticity", Status: detect.StatusPass, Score: -0.30,
			Reason: "camera and lens serials verified", Severity: detect.SeverityBonus}, -30, false
	case cameraSerial != "":
		return detect.Check{Layer: "Camera Authenticity", Status: detect.StatusPass, Score: -0.20,
			Reason: "camera serial verified", Severity: detect.SeverityBonus}, -20, false
	case lensSerial != "":
		return detect.Check{Layer: "Camera Authenticity", Status: detect.StatusPass, Score: -0.15,
			Reason: "lens serial verified", Severity: detect.SeverityBonus}, -15, false
	default:
		return detect.Check{Layer: "Camera Authenticity", Status: detect.StatusNA, Score: 0,
			Reason: "no serial numbers in EXIF"}, 0, false
	}
}

// Layer 1: Apple Hardware Token.
func layerAppleRuntime(exif exifreader.Map, telegramMode bool) (detect.Check, int, bool) {
	if telegramMode && len(exif) == 0 {
		return detect.Check{Layer: "Apple Hardware Token", Status: detect.StatusNA, Reason: "EXIF stripped (expected)"}, 0, false
	}

	make := strings.ToLower(exif["Make"])
	model := strings.ToLower(exif["Model"])
	isIPhone := strings.Contains(make, "apple") || strings.Contains(model, "iphone")
	if !isIPhone {
		return detect.Check{Layer: "Apple Hardware Token", Status: detect.StatusNA, Reason: "not an iPhone photo"}, 0, false
	}

	hasRuntime := exif["MakerNotes:RunTimeFlags"] != "" ||
		exif["Composite:RunTimeSincePowerUp"] != "" ||
		exif["MakerNotes:RunTimeEpoch"] != "" ||
		exif["MakerNotes:AccelerationVector"] != ""

	if !hasRuntime {
		return detect.Check{Layer: "Apple Hardware Token", Status: detect.StatusFail, Score: 0.95,
			Reason: "missing Apple runtime token (unfakeable hardware marker)", Severity: detect.SeverityCritical},
			scoreAppleRuntimeMissing, true
	}
	return detect.Check{Layer: "Apple Hardware Token", Status: detect.StatusPass, Reason: "valid Apple runtime token detected"}, 0, false
}

// Layer 2: Screenshot Detection.
func layerScreenshot(exif exifreader.Map, iccDescription string, rules config.TrustRules) (detect.Check, int, bool) {
	iccLower := strings.ToLower(iccDescription)
	if strings.Contains(iccLower, "display p3") {
		return detect.Check{Layer: "Screenshot Detection", Status: detect.StatusPass,
			Reason: "ICC profile is Display P3 (camera-native gamut)"}, 0, false
	}
	for _, kw := range rules.MonitorProfileKeywords {
		if iccDescription != "" && strings.Contains(iccLower, strings.ToLower(kw)) {
			return detect.Check{Layer: "Screenshot Detection", Status: detect.StatusFail, Score: 0.95,
				Reason: "monitor ICC profile detected: " + kw, Severity: detect.SeverityCritical},
				scoreMonitorProfile, true
		}
	}

	software := strings.ToLower(exif["Software"])
	for _, kw := range rules.ScreenshotSoftwareKeywords {
		if strings.Contains(software, kw) {
			return detect.Check{Layer: "Screenshot Detection", Status: detect.StatusFail, Score: 0.95,
				Reason: "screenshot software detected: " + kw, Severity: detect.SeverityCritical},
				scoreMonitorProfile, true
		}
	}

	make, hasMake := exif["Make"]
	model, hasModel := exif["Model"]
	lens, hasLens := exif["LensModel"]
	copyrightInfo := strings.ToLower(exif["Copyright"])

	if !hasMake && !hasModel && !hasLens && len(exif) > 0 {
		for _, svc := range rules.StockPhotoServices {
			if strings.Contains(copyrightInfo, svc) {
				return detect.Check{Layer: "Screenshot Detection", Status: detect.StatusPass,
					Reason: "stock photo from " + svc + " (EXIF stripped by provider)"}, 0, false
			}
		}
		_ = make
		_ = model
		return detect.Check{Layer: "Screenshot Detection", Status: detect.StatusWarn, Score: 0.40,
			Reason: "missing camera info (possible screenshot)", Severity: detect.SeverityMedium}, 40, true
	}

	return detect.Check{Layer: "Screenshot Detection", Status: detect.StatusPass, Reason: "no screenshot indicators found"}, 0, false
}

// Layer 3: Software Manipulation.
func layerSoftwareManipulation(exif exifreader.Map, rules config.TrustRules) (detect.Check, int, bool) {
	software := strings.ToLower(exif["Software"])
	creatorTool := strings.ToLower(firstNonEmpty(exif, "XMP:CreatorTool", "CreatorTool"))
	combined := software + " " + creatorTool

	for _, tool := range rules.AIGenerationTools {
		if strings.Contains(combined, tool) {
			return detect.Check{Layer: "Software Manipulation", Status: detect.StatusFail, Score: 0.98,
				Reason: "AI generation tool detected: " + tool, Severity: detect.SeverityCritical,
				Details: map[string]any{"requires_visual_proof": false}},
				scoreAISoftware, true
		}
	}

	if trusted, match, matchedCreator := bestTrustedMatch(combined, creatorTool, rules.TrustedPhotoSoftware); trusted {
		adjusted := scorePhotoshopBase - match.PenaltyReduction
		if adjusted < 0 {
			adjusted = 0
		}
		status := detect.StatusPass
		if adjusted > 20 {
			status = detect.StatusWarn
		}
		matchedIn := "Software"
		if matchedCreator {
			matchedIn = "CreatorTool"
		}
		return detect.Check{Layer: "Software Manipulation", Status: status, Score: float64(adjusted) / 100,
			Reason:   "professional photo software: " + match.Name + " (from " + matchedIn + ")",
			Severity: detect.SeverityLow,
			Details: map[string]any{
				"requires_visual_proof": true,
				"trust_level":           match.TrustLevel,
			}}, adjusted, adjusted > 0
	}

	for _, tool := range rules.SuspiciousEditingTools {
		if strings.Contains(combined, tool) {
			return detect.Check{Layer: "Software Manipulation", Status: detect.StatusWarn, Score: 0.60,
				Reason: "editing software detected: " + tool, Severity: detect.SeverityMedium,
				Details: map[string]any{"requires_visual_proof": true}}, 60, true
		}
	}

	for _, app := range rules.NativePhotoApps {
		if strings.Contains(combined, app) {
			return detect.Check{Layer: "Software Manipulation", Status: detect.StatusPass, Reason: "native photo app: " + app}, 0, false
		}
	}

	return detect.Check{Layer: "Software Manipulation", Status: detect.StatusPass, Reason: "no editing software detected"}, 0, false
}

// bestTrustedMatch prefers a match found in the CreatorTool field, per
// the reference implementation's "RAW workflow takes priority" rule;
// absent a CreatorTool match, it takes the first match in table's
// on-disk order, matching the reference's insertion-order iteration.
func bestTrustedMatch(combined, creatorTool string, table []config.TrustedSoftware) (bool, config.TrustedSoftware, bool) {
	var best config.TrustedSoftware
	found := false
	for _, entry := range table {
		if strings.Contains(combined, entry.Name) {
			if strings.Contains(creatorTool, entry.Name) {
				return true, entry, true
			}
			if !found {
				best = entry
				found = true
			}
		}
	}
	return found, best, false
}

// Layer 4: GPS Validation.
func layerGPS(exif exifreader.Map, telegramMode bool) (detect.Check, int, bool) {
	if telegramMode && len(exif) == 0 {
		return detect.Check{Layer: "GPS Validation", Status: detect.StatusNA, Reason: "GPS stripped (expected)"}, 0, false
	}

	gpsPresent := false
	for k := range exif {
		if strings.HasPrefix(k, "GPS") {
			gpsPresent = true
			break
		}
	}
	if gpsPresent {
		return detect.Check{Layer: "GPS Validation", Status: detect.StatusPass, Reason: "GPS coordinates present"}, 0, false
	}

	model := exif["Model"]
	isModern := false
	for _, year := range []string{"11", "12", "13", "14", "15", "20", "21", "22", "23", "24", "25"} {
		if strings.Contains(model, year) {
			isModern = true
			break
		}
	}

	if isModern {
		return detect.Check{Layer: "GPS Validation", Status: detect.StatusFail, Score: 0.70,
			Reason: "GPS data missing on modern device", Severity: detect.SeverityHigh}, scoreGPSModernMissing, true
	}
	return detect.Check{Layer: "GPS Validation", Status: detect.StatusWarn, Score: 0.30,
		Reason: "GPS data missing", Severity: detect.SeverityMedium}, scoreGPSMissing, true
}

// Layer 5: Timestamp Consistency.
func layerTimestamps(ctx context.Context, exif exifreader.Map, rules config.TrustRules, telegramMode bool, clock ClockAuthority) (detect.Check, int, bool) {
	if telegramMode && len(exif) == 0 {
		return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusNA, Reason: "timestamps stripped (expected)"}, 0, false
	}

	orig, hasOrig := exif["DateTimeOriginal"]
	mod, hasMod := exif["DateTime"]
	if !hasOrig || !hasMod {
		return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusWarn, Score: 0.20,
			Reason: "missing timestamps"}, 20, true
	}

	software := strings.ToLower(exif["Software"])
	trusted := false
	for _, entry := range rules.TrustedPhotoSoftware {
		if strings.Contains(software, entry.Name) {
			trusted = true
			break
		}
	}

	dtOrig, err1 := time.Parse("2006:01:02 15:04:05", orig)
	dtMod, err2 := time.Parse("2006:01:02 15:04:05", mod)
	if err1 != nil || err2 != nil {
		return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusPass, Reason: "timestamps unparsable, skipped"}, 0, false
	}

	if clock != nil {
		if suspicious, detail := clock.JudgeFuture(ctx, dtOrig); suspicious {
			return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusFail, Score: 0.75,
				Reason: "capture timestamp is ahead of NTP-trusted time: " + detail, Severity: detect.SeverityHigh},
				scoreTimestampModified, true
		}
	}

	gap := dtMod.Sub(dtOrig)
	if gap < 0 {
		gap = -gap
	}

	switch {
	case gap > time.Hour:
		if trusted {
			return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusPass,
				Reason: "professional editing workflow (trusted software)"}, 0, false
		}
		return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusFail, Score: 0.75,
			Reason: "photo modified long after capture with no trusted software", Severity: detect.SeverityHigh},
			scoreTimestampModified, true
	case gap > time.Minute:
		if trusted {
			return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusWarn, Score: 0.10,
				Reason: "minor modification after capture (trusted software)"}, 10, true
		}
		return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusWarn, Score: 0.30,
			Reason: "minor modification after capture"}, 30, true
	default:
		return detect.Check{Layer: "Timestamp Consistency", Status: detect.StatusPass, Reason: "timestamps consistent"}, 0, false
	}
}

var (
	geminiRe    = regexp.MustCompile(`\bgemini\b`)
	imagenRe    = regexp.MustCompile(`\bimagen\b`)
	aiContextRe = regexp.MustCompile(`\b(ai|artificial intelligence|trainedalgorithmicmedia)\b`)
)

// Layer 6: Google AI Credits (XMP).
func layerXMPAICredits(xmp []byte) (detect.Check, int, bool) {
	if len(xmp) == 0 {
		return detect.Check{Layer: "Google AI Credits", Status: detect.StatusPass, Reason: "no XMP metadata present"}, 0, false
	}

	section := strings.ToLower(string(xmp))
	markers := []string{"edited with google ai", "trainedalgorithmicmedia", "google ai"}
	for _, m := range markers {
		if strings.Contains(section, m) {
			return detect.Check{Layer: "Google AI Credits", Status: detect.StatusFail, Score: 0.98,
				Reason: "XMP AI marker: " + m, Severity: detect.SeverityCritical}, scoreAISoftware, true
		}
	}

	hasGemini := geminiRe.MatchString(section)
	hasImagen := imagenRe.MatchString(section)
	hasAIContext := aiContextRe.MatchString(section)
	if (hasGemini || hasImagen) && hasAIContext {
		return detect.Check{Layer: "Google AI Credits", Status: detect.StatusFail, Score: 0.98,
			Reason: "Google AI tool detected in XMP (Gemini/Imagen)", Severity: detect.SeverityCritical}, scoreAISoftware, true
	}

	return detect.Check{Layer: "Google AI Credits", Status: detect.StatusPass, Reason: "no Google AI markers in XMP"}, 0, false
}

// Layer 7: Physics/Sensor Validation.
func layerPhysics(exif exifreader.Map) (detect.Check, int, bool) {
	model := strings.ToLower(exif["Model"])
	if !strings.Contains(model, "iphone") {
		return detect.Check{Layer: "Physics Validation", Status: detect.StatusPass, Reason: "camera parameters not applicable"}, 0, false
	}

	fStr := exif["FNumber"]
	if fStr == "" {
		return detect.Check{Layer: "Physics Validation", Status: detect.StatusPass, Reason: "no aperture data to validate"}, 0, false
	}
	fVal, err := strconv.ParseFloat(fStr, 64)
	if err != nil {
		return detect.Check{Layer: "Physics Validation", Status: detect.StatusPass, Reason: "aperture unparsable, skipped"}, 0, false
	}
	if fVal < 1.0 || fVal > 3.0 {
		return detect.Check{Layer: "Physics Validation", Status: detect.StatusFail, Score: 0.88,
			Reason: "impossible aperture for iPhone", Severity: detect.SeverityCritical}, scorePhysicsViolation, true
	}
	return detect.Check{Layer: "Physics Validation", Status: detect.StatusPass, Reason: "camera parameters valid"}, 0, false
}

// Layer 8: Lens/Device Consistency.
func layerLensConsistency(exif exifreader.Map) (detect.Check, int, bool) {
	model := strings.ToLower(exif["Model"])
	lens := strings.ToLower(exif["LensModel"])
	if lens == "" {
		return detect.Check{Layer: "Lens Consistency", Status: detect.StatusPass, Reason: "no lens model specified"}, 0, false
	}
	if strings.Contains(model, "iphone") && (strings.Contains(lens, "canon") || strings.Contains(lens, "nikon")) {
		return detect.Check{Layer: "Lens Consistency", Status: detect.StatusFail, Score: 0.60,
			Reason: "iPhone with DSLR lens: " + lens, Severity: detect.SeverityHigh}, scoreLensMismatch, true
	}
	return detect.Check{Layer: "Lens Consistency", Status: detect.StatusPass, Reason: "lens matches device"}, 0, false
}

// Layer 9: Format Validation.
func layerFormat(format string) (detect.Check, int, bool) {
	switch format {
	case "PNG":
		return detect.Check{Layer: "Format Validation", Status: detect.StatusWarn, Score: 0.40,
			Reason: "PNG format (typically screenshots or editing)", Severity: detect.SeverityMedium}, scoreFormatPNG, true
	case "WEBP":
		return detect.Check{Layer: "Format Validation", Status: detect.StatusWarn, Score: 0.50,
			Reason: "WebP format (AI generation or web download)", Severity: detect.SeverityMedium}, scoreFormatWEBP, true
	default:
		return detect.Check{Layer: "Format Validation", Status: detect.StatusPass, Reason: format + " is a standard camera format"}, 0, false
	}
}

// Layer 10: Messaging App Detection.
func layerMessagingApp(req Request, rules config.TrustRules) (detect.Check, int, bool) {
	if req.SourcePlatform != "" {
		platform := strings.ToLower(req.SourcePlatform)
		for _, known := range rules.KnownSocialMediaPlatforms {
			if platform == known {
				return detect.Check{Layer: "Messaging App Detection", Status: detect.StatusPass,
					Reason: "image from " + req.SourcePlatform + " (EXIF stripped by platform policy)"}, 0, false
			}
		}
	}

	copyrightInfo := strings.ToLower(req.ExifData["Copyright"])
	for _, svc := range rules.StockPhotoServices {
		if strings.Contains(copyrightInfo, svc) {
			return detect.Check{Layer: "Messaging App Detection", Status: detect.StatusPass,
				Reason: "stock photo from " + svc + " (not messaging app)"}, 0, false
		}
	}

	maxDim := req.Width
	if req.Height > maxDim {
		maxDim = req.Height
	}
	fileSize := len(req.ImageBytes)
	var bytesPerPixel float64
	if req.Width > 0 && req.Height > 0 {
		bytesPerPixel = float64(fileSize) / float64(req.Width*req.Height)
	}

	var confidence float64
	var reasons []string

	if len(req.ExifData) < 3 {
		confidence += 0.50
		reasons = append(reasons, "complete EXIF absence")
	}
	if fileSize >= 50_000 && fileSize <= 1_500_000 {
		confidence += 0.20
		reasons = append(reasons, "file size in messaging range")
	}
	if bytesPerPixel >= 0.10 && bytesPerPixel <= 0.50 {
		confidence += 0.10
		reasons = append(reasons, "aggressive compression")
	}
	if maxDim == 1600 {
		confidence += 0.30
		reasons = append(reasons, "WhatsApp resize signature (1600px)")
	}
	if maxDim == 1280 {
		confidence += 0.30
		reasons = append(reasons, "Telegram resize signature (1280px)")
	}

	if confidence >= 0.60 {
		return detect.Check{Layer: "Messaging App Detection", Status: detect.StatusFail, Score: 0.80,
			Reason: "WhatsApp/Telegram processing detected", Severity: detect.SeverityCritical,
			Details: map[string]any{"indicators": reasons}}, scoreMessagingApp, true
	}

	return detect.Check{Layer: "Messaging App Detection", Status: detect.StatusPass, Reason: "no messaging app processing detected"}, 0, false
}

func firstNonEmpty(m exifreader.Map, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
