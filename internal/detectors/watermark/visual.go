// Package watermark implements the Visual Watermark Detector (VW, C6)
// and the Cryptographic Watermark Detector (CW, C7): a dictionary
// search over OCR text, and a plug-point probe for embedded
// content-credentials.
//
// Grounded on spec §4.5/§4.6. Neither detector has a teacher analog;
// both are written in the style of the other detectors in this
// package family, degrading softly (never a terminal error) when
// their underlying collaborator is unavailable.
package watermark

import (
	"context"
	"image"
	"strings"

	"github.com/sevrusik/turthsnapbot/internal/config"
	"github.com/sevrusik/turthsnapbot/internal/detect"
)

const (
	NameVisual = "visual_watermark"
	NameCrypto = "cryptographic_watermark"

	sparseTextConfidenceThreshold = 30
)

// TextExtractor is the OCR collaborator VW depends on. Implementations
// should return an error only when OCR is entirely unavailable (e.g.
// the binary isn't installed); a clean image with no text is a normal,
// non-error result.
type TextExtractor interface {
	ExtractSparseText(ctx context.Context, img image.Image, confidenceThreshold int) (string, error)
}

// NoopTextExtractor always reports OCR unavailable. It is the default
// when no real OCR collaborator has been configured, letting Verify
// proceed rather than fail.
type NoopTextExtractor struct{}

func (NoopTextExtractor) ExtractSparseText(context.Context, image.Image, int) (string, error) {
	return "", errOCRUnavailable
}

var errOCRUnavailable = ocrUnavailableError{}

type ocrUnavailableError struct{}

func (ocrUnavailableError) Error() string { return "ocr unavailable" }

// AnalyzeVisual runs OCR over img and matches the extracted text
// against the AI-provider and stock-provider dictionaries.
func AnalyzeVisual(ctx context.Context, img image.Image, extractor TextExtractor, rules config.WatermarkRules) detect.Report {
	if extractor == nil {
		extractor = NoopTextExtractor{}
	}

	text, err := extractor.ExtractSparseText(ctx, img, sparseTextConfidenceThreshold)
	if err != nil {
		return detect.Report{
			Name:  NameVisual,
			Score: 0,
			Details: map[string]any{
				"detected": false,
				"note":     "ocr_unavailable",
			},
		}
	}

	lower := strings.ToLower(text)

	for _, token := range rules.AIProviderTokens {
		if strings.Contains(lower, token) {
			return detect.Report{
				Name:  NameVisual,
				Score: 0.90,
				Checks: []detect.Check{{
					Layer: "AI Provider Watermark", Status: detect.StatusFail, Score: 0.90,
					Reason: "AI provider token found: " + token, Confidence: 0.90,
				}},
				Details: map[string]any{
					"detected":   true,
					"type":       token,
					"confidence": 0.90,
					"text_found": text,
					"location":   "bottom_right",
					"method":     "ocr",
				},
			}
		}
	}

	for _, token := range rules.StockProviderTokens {
		if strings.Contains(lower, token) {
			return detect.Report{
				Name:  NameVisual,
				Score: 0.10,
				Checks: []detect.Check{{
					Layer: "Stock Photo Watermark", Status: detect.StatusWarn, Score: 0.10,
					Reason: "stock photo token found: " + token, Confidence: 0.85,
				}},
				Details: map[string]any{
					"detected":   true,
					"type":       "stock_photo",
					"confidence": 0.85,
					"text_found": text,
					"location":   "center",
					"method":     "ocr",
				},
			}
		}
	}

	return detect.Report{
		Name:  NameVisual,
		Score: 0,
		Details: map[string]any{
			"detected": false,
		},
	}
}
