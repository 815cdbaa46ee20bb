// Package verdict implements the Fusion/Verdict Engine (C12): an
// ordered override cascade followed by a weighted composite score and
// a threshold table, reducing every detector's report to one Verdict.
//
// Grounded on spec §4.11. Threshold comparisons are closed on the
// upper side (`combined > X` strictly) per §9's redesign guidance.
package verdict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sevrusik/turthsnapbot/internal/detect"
)

// Inputs bundles every detector's output the fusion engine reads.
type Inputs struct {
	Heuristic  detect.Report
	Metadata   detect.ValidatorReport
	Visual     detect.Report // VW; Details carry detected/type/confidence
	Crypto     detect.Report // CW; Details carry detected/type/confidence
	Frequency  detect.Report
	FaceSwap   detect.Report // Details carry faces_detected
	Mode       detect.Mode
}

// Fuse runs the override cascade, then the weighted composite and
// threshold table, producing the final Verdict.
func Fuse(in Inputs) detect.Verdict {
	if allTerminalError(in) {
		return detect.Verdict{Status: detect.VerdictInconclusive, Confidence: 0.5, Reason: "analysis_failed"}
	}

	if v, ok := overrideVisualAI(in); ok {
		return v
	}
	if v, ok := overrideVisualStock(in); ok {
		return v
	}
	if v, ok := overrideCrypto(in); ok {
		return v
	}
	if v, ok := overrideMVCriticalAI(in); ok {
		return v
	}
	if v, ok := overrideMVCriticalScreenshot(in); ok {
		return v
	}
	if v, ok := overrideMVFraudHigh(in); ok {
		return v
	}

	return composite(in)
}

func allTerminalError(in Inputs) bool {
	reports := []detect.Report{in.Heuristic, in.Metadata.Report, in.Visual, in.Crypto, in.Frequency, in.FaceSwap}
	for _, r := range reports {
		if !r.TerminalError {
			return false
		}
	}
	return true
}

func visualDetail(r detect.Report, key string) (any, bool) {
	if r.TerminalError || r.Details == nil {
		return nil, false
	}
	v, ok := r.Details[key]
	return v, ok
}

func detectedBool(r detect.Report) bool {
	v, ok := visualDetail(r, "detected")
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// overrideVisualAI is override 1: a visual watermark naming an AI
// provider.
func overrideVisualAI(in Inputs) (detect.Verdict, bool) {
	if !detectedBool(in.Visual) {
		return detect.Verdict{}, false
	}
	typ, _ := visualDetail(in.Visual, "type")
	typStr, _ := typ.(string)
	if typStr == "stock_photo" {
		return detect.Verdict{}, false
	}
	conf := 0.90
	if c, ok := visualDetail(in.Visual, "confidence"); ok {
		if cf, ok := c.(float64); ok {
			conf = cf
		}
	}
	confidence := conf
	if 0.98 > confidence {
		confidence = 0.98
	}
	return detect.Verdict{
		Status:     detect.VerdictAIGenerated,
		Confidence: round4(confidence),
		Reason:     "AI provider watermark detected: " + typStr,
	}, true
}

// overrideVisualStock is override 2.
func overrideVisualStock(in Inputs) (detect.Verdict, bool) {
	if !detectedBool(in.Visual) {
		return detect.Verdict{}, false
	}
	typ, _ := visualDetail(in.Visual, "type")
	typStr, _ := typ.(string)
	if typStr != "stock_photo" {
		return detect.Verdict{}, false
	}
	return detect.Verdict{
		Status:     detect.VerdictManipulated,
		Confidence: 0.90,
		Reason:     "stock photo watermark detected",
	}, true
}

// overrideCrypto is override 3.
func overrideCrypto(in Inputs) (detect.Verdict, bool) {
	if !detectedBool(in.Crypto) {
		return detect.Verdict{}, false
	}
	conf := 0.95
	if c, ok := visualDetail(in.Crypto, "confidence"); ok {
		if cf, ok := c.(float64); ok && cf > conf {
			conf = cf
		}
	}
	return detect.Verdict{
		Status:     detect.VerdictAIGenerated,
		Confidence: round4(conf),
		Reason:     "cryptographic content credential detected",
	}, true
}

func mvActiveRedFlags(mv detect.ValidatorReport) []detect.RedFlag {
	if mv.TerminalError {
		return nil
	}
	return mv.RedFlags
}

// overrideMVCriticalAI is override 4.
func overrideMVCriticalAI(in Inputs) (detect.Verdict, bool) {
	for _, f := range mvActiveRedFlags(in.Metadata) {
		if f.Severity != detect.SeverityCritical || f.RequiresVisualProof {
			continue
		}
		low := strings.ToLower(f.Reason)
		if strings.Contains(low, "ai") || strings.Contains(low, "google ai") {
			return detect.Verdict{
				Status:     detect.VerdictAIGenerated,
				Confidence: 0.98,
				Reason:     f.Reason,
			}, true
		}
	}
	return detect.Verdict{}, false
}

// overrideMVCriticalScreenshot is override 5.
func overrideMVCriticalScreenshot(in Inputs) (detect.Verdict, bool) {
	for _, f := range mvActiveRedFlags(in.Metadata) {
		if f.Severity != detect.SeverityCritical {
			continue
		}
		if strings.Contains(strings.ToLower(f.Reason), "screenshot") {
			return detect.Verdict{
				Status:     detect.VerdictManipulated,
				Confidence: 0.95,
				Reason:     f.Reason,
			}, true
		}
	}
	return detect.Verdict{}, false
}

// overrideMVFraudHigh is override 6.
func overrideMVFraudHigh(in Inputs) (detect.Verdict, bool) {
	if in.Metadata.TerminalError || in.Metadata.FraudScore < 80 {
		return detect.Verdict{}, false
	}
	status := detect.VerdictManipulated
	if in.Metadata.FraudScore >= 90 {
		status = detect.VerdictAIGenerated
	}
	conf := float64(in.Metadata.FraudScore) / 100
	if conf > 0.98 {
		conf = 0.98
	}
	return detect.Verdict{
		Status:     status,
		Confidence: round4(conf),
		Reason:     fmt.Sprintf("metadata fraud score %d", in.Metadata.FraudScore),
	}, true
}

func facesDetected(fs detect.Report) int {
	if fs.TerminalError || fs.Details == nil {
		return 0
	}
	v, ok := fs.Details["faces_detected"]
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

func scoreOrNeutral(r detect.Report) float64 {
	return r.Score
}

// composite computes the weighted composite, applies the two
// modifiers, and resolves the final threshold band.
func composite(in Inputs) detect.Verdict {
	ha := scoreOrNeutral(in.Heuristic)
	fd := scoreOrNeutral(in.Frequency)
	fraud := float64(in.Metadata.FraudScore)
	if in.Metadata.TerminalError {
		fraud = 50
	}
	fs := scoreOrNeutral(in.FaceSwap)
	faces := facesDetected(in.FaceSwap)

	metadataRisk := fraud / 100
	trusted := false
	for _, f := range mvActiveRedFlags(in.Metadata) {
		if f.TrustLevel == "high" || f.TrustLevel == "medium" {
			trusted = true
			break
		}
	}
	if trusted {
		metadataRisk = metadataRisk - 0.30
		if metadataRisk < 0 {
			metadataRisk = 0
		}
	}

	bonus := 0.0
	make_, model := mvMakeModel(in.Metadata)
	if fraud < 40 && (make_ != "" || model != "") {
		bonus = (40 - fraud) / 100
		if bonus > 0.40 {
			bonus = 0.40
		}
	}

	combined := 0.35*ha + 0.30*fd + 0.25*metadataRisk
	if faces > 0 {
		combined += 0.10 * fs
	}

	reason := topReason(in, combined)

	switch {
	case combined > 0.85:
		return detect.Verdict{Status: detect.VerdictAIGenerated, Confidence: round4(min(0.98, combined)), Reason: reason}

	case combined > 0.70:
		visualSub := 0.3*ha + 0.4*fd
		if trusted && visualSub < 0.50 {
			return detect.Verdict{Status: detect.VerdictReal, Confidence: 0.70, Reason: "trusted software with low visual suspicion"}
		}
		return detect.Verdict{Status: detect.VerdictAIGenerated, Confidence: round4(combined), Reason: reason}

	case combined > 0.50:
		if isStockPhoto(in.Metadata) {
			return detect.Verdict{Status: detect.VerdictReal, Confidence: 0.70, Reason: "stock photo indicators"}
		}
		if trusted && (0.3*ha+0.4*fd) < 0.60 {
			return detect.Verdict{Status: detect.VerdictReal, Confidence: 0.75, Reason: "trusted software with low visual suspicion"}
		}
		if faces > 0 && fs > 0.70 {
			return detect.Verdict{Status: detect.VerdictManipulated, Confidence: round4(fs), Reason: "face-swap indicators dominant"}
		}
		if hasMessagingAppFlag(in.Metadata) {
			return detect.Verdict{Status: detect.VerdictManipulated, Confidence: 0.75, Reason: "messaging-app reprocessing detected"}
		}
		return detect.Verdict{Status: detect.VerdictManipulated, Confidence: round4(combined), Reason: reason}

	case combined > 0.35:
		if bonus > 0 {
			conf := 1 - combined + bonus
			if conf < 0.70 {
				conf = 0.70
			}
			return detect.Verdict{Status: detect.VerdictReal, Confidence: round4(conf), Reason: "good metadata bonus applied"}
		}
		return detect.Verdict{Status: detect.VerdictInconclusive, Confidence: 0.50, Reason: reason}

	case combined > 0.20:
		conf := 1 - combined + bonus
		if conf > 0.90 {
			conf = 0.90
		}
		return detect.Verdict{Status: detect.VerdictReal, Confidence: round4(conf), Reason: reason}

	default:
		conf := 1 - combined + bonus
		if conf > 0.95 {
			conf = 0.95
		}
		if conf < 0.85 {
			conf = 0.85
		}
		return detect.Verdict{Status: detect.VerdictReal, Confidence: round4(conf), Reason: reason}
	}
}

func mvMakeModel(mv detect.ValidatorReport) (make_, model string) {
	if mv.TerminalError || mv.Details == nil {
		return "", ""
	}
	if m, ok := mv.Details["make"].(string); ok {
		make_ = m
	}
	if m, ok := mv.Details["model"].(string); ok {
		model = m
	}
	return
}

func isStockPhoto(mv detect.ValidatorReport) bool {
	if mv.TerminalError {
		return false
	}
	for _, c := range mv.Checks {
		if strings.Contains(strings.ToLower(c.Reason), "stock photo") {
			return true
		}
	}
	return false
}

func hasMessagingAppFlag(mv detect.ValidatorReport) bool {
	for _, f := range mvActiveRedFlags(mv) {
		if f.Layer == "Messaging App Detection" {
			return true
		}
	}
	return false
}

// topReason picks the one or two highest-severity red flags, in layer
// order, and folds them with the combined score into a human-readable
// reason string.
func topReason(in Inputs, combined float64) string {
	flags := mvActiveRedFlags(in.Metadata)
	sorted := make([]detect.RedFlag, len(flags))
	copy(sorted, flags)
	sort.SliceStable(sorted, func(i, j int) bool {
		return severityRank(sorted[i].Severity) > severityRank(sorted[j].Severity)
	})

	reason := "weighted composite analysis"
	switch {
	case len(sorted) == 1:
		reason = sorted[0].Reason
	case len(sorted) > 1:
		reason = sorted[0].Reason + "; " + sorted[1].Reason
	}
	return fmt.Sprintf("%s (combined score %.4f)", reason, combined)
}

func severityRank(s detect.Severity) int {
	switch s {
	case detect.SeverityCritical:
		return 4
	case detect.SeverityHigh:
		return 3
	case detect.SeverityMedium:
		return 2
	case detect.SeverityLow:
		return 1
	default:
		return 0
	}
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
