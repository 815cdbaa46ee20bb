// Package timeauthority judges whether an EXIF capture timestamp is
// plausible against an NTP-disciplined notion of "now", feeding MV
// Layer 5's timestamp-gap check with a trusted-clock precondition.
//
// Adapted from the camera/bridge clock-authority pattern used
// elsewhere in this codebase's lineage: an NTP health check gates
// confidence, and confidence in turn gates how much weight a
// timestamp anomaly should carry.
package timeauthority

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/beevik/ntp"

	"github.com/sevrusik/turthsnapbot/internal/logger"
)

// Confidence reflects how much the caller should trust NTP-derived time.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Config controls NTP polling and drift tolerances.
type Config struct {
	Server               string
	QueryTimeout         time.Duration
	WarnDriftSeconds     int
	UnhealthyDriftSeconds int
}

func DefaultConfig() Config {
	return Config{
		Server:                "pool.ntp.org",
		QueryTimeout:          2 * time.Second,
		WarnDriftSeconds:      30,
		UnhealthyDriftSeconds: 300,
	}
}

// EnabledFromEnv reports whether CLOCK_AUTHORITY_ENABLED is set, the gate
// verify.New checks before querying NTP at startup — an Authority is a
// real network dependency, so it stays off unless explicitly requested.
func EnabledFromEnv() bool {
	v := os.Getenv("CLOCK_AUTHORITY_ENABLED")
	return v == "1" || v == "true"
}

// Authority wraps an NTP offset sample and classifies future-dated or
// drifted EXIF timestamps against it.
type Authority struct {
	cfg    Config
	log    *logger.Logger
	offset time.Duration
	healthy bool
}

// New queries the configured NTP server once; a failed query degrades
// to ConfidenceLow rather than failing the caller — clock authority is
// an optional precondition, never a fatal dependency.
func New(cfg Config, log *logger.Logger) *Authority {
	if log == nil {
		log = logger.Default()
	}
	a := &Authority{cfg: cfg, log: log}

	resp, err := ntp.QueryWithOptions(cfg.Server, ntp.QueryOptions{Timeout: cfg.QueryTimeout})
	if err != nil {
		log.Warn("timeauthority: ntp query failed, clock confidence degraded", "error", err)
		a.healthy = false
		return a
	}
	a.offset = resp.ClockOffset
	a.healthy = resp.Stratum > 0 && resp.Stratum < 16
	return a
}

// Now returns the NTP-corrected current time.
func (a *Authority) Now() time.Time {
	return time.Now().Add(a.offset)
}

// Confidence reports how much weight MV Layer 5 should give this
// authority's notion of "now".
func (a *Authority) Confidence() Confidence {
	if !a.healthy {
		return ConfidenceLow
	}
	drift := a.offset
	if drift < 0 {
		drift = -drift
	}
	switch {
	case int(drift.Seconds()) >= a.cfg.UnhealthyDriftSeconds:
		return ConfidenceLow
	case int(drift.Seconds()) >= a.cfg.WarnDriftSeconds:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// JudgeFuture reports whether an EXIF DateTimeOriginal sits suspiciously
// in the future of NTP-true time — itself evidence for MV Layer 5,
// independent of the DateTime/DateTimeOriginal gap check.
func (a *Authority) JudgeFuture(ctx context.Context, captured time.Time) (suspicious bool, detail string) {
	if a.Confidence() == ConfidenceLow {
		return false, "clock authority unavailable"
	}
	delta := captured.Sub(a.Now())
	if delta > 5*time.Minute {
		return true, fmt.Sprintf("capture timestamp %s ahead of trusted clock", delta)
	}
	return false, ""
}
