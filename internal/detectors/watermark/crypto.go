package watermark

import (
	"context"

	"github.com/sevrusik/turthsnapbot/internal/detect"
)

// CredentialProbe is the plug-point collaborator for C7: a
// content-credentials / SynthID / C2PA / Meta-invisible-watermark
// prober. No such probe ships with this package; callers that have
// one wire it in through AnalyzeCrypto. Contract: Probe must not
// panic on an image with no embedded credentials — absence is a
// normal, non-error result.
type CredentialProbe interface {
	Probe(ctx context.Context, raw []byte) (detected bool, credentialType string, confidence float64, metadata map[string]any, err error)
}

// NoProbeConfigured is the default CredentialProbe when no real prober
// has been wired in: it always reports absence rather than failing.
type NoProbeConfigured struct{}

func (NoProbeConfigured) Probe(context.Context, []byte) (bool, string, float64, map[string]any, error) {
	return false, "", 0, nil, nil
}

// AnalyzeCrypto runs the configured probe and turns its result into a
// DetectorReport. A probe error degrades to a soft "unavailable"
// result rather than a terminal error, matching VW's contract.
func AnalyzeCrypto(ctx context.Context, raw []byte, probe CredentialProbe) detect.Report {
	if probe == nil {
		probe = NoProbeConfigured{}
	}

	detected, credType, confidence, metadata, err := probe.Probe(ctx, raw)
	if err != nil {
		return detect.Report{
			Name:  NameCrypto,
			Score: 0,
			Details: map[string]any{
				"detected": false,
				"note":     "probe_unavailable",
			},
		}
	}

	if !detected {
		return detect.Report{
			Name:  NameCrypto,
			Score: 0,
			Details: map[string]any{
				"detected": false,
			},
		}
	}

	return detect.Report{
		Name:  NameCrypto,
		Score: confidence,
		Checks: []detect.Check{{
			Layer: "Content Credentials", Status: detect.StatusFail, Score: confidence,
			Reason: "embedded content credential detected: " + credType, Confidence: confidence,
		}},
		Details: map[string]any{
			"detected":   true,
			"type":       credType,
			"confidence": confidence,
			"metadata":   metadata,
		},
	}
}
