package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	rules, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if len(rules.Trust.AIGenerationTools) == 0 {
		t.Fatalf("Trust.AIGenerationTools is empty, want embedded defaults")
	}
	if len(rules.Watermark.AIProviderTokens) == 0 {
		t.Fatalf("Watermark.AIProviderTokens is empty, want embedded defaults")
	}
}

func TestLoad_OverrideFileWins(t *testing.T) {
	dir := t.TempDir()
	const override = `{"ai_provider_tokens":["only-this-token"],"stock_provider_tokens":[]}`
	if err := os.WriteFile(filepath.Join(dir, "watermark.json"), []byte(override), 0o644); err != nil {
		t.Fatalf("writing override file: %v", err)
	}

	rules, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) returned error: %v", err)
	}
	if len(rules.Watermark.AIProviderTokens) != 1 || rules.Watermark.AIProviderTokens[0] != "only-this-token" {
		t.Fatalf("Watermark.AIProviderTokens = %v, want override to fully replace the embedded default", rules.Watermark.AIProviderTokens)
	}
	// Tables without an override file still fall back to the embedded default.
	if len(rules.Trust.AIGenerationTools) == 0 {
		t.Fatalf("Trust.AIGenerationTools is empty, want the embedded default when no override file is present")
	}
}

func TestLoad_MissingOverrideDirFallsBackToEmbedded(t *testing.T) {
	rules, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Load returned error for a missing override dir: %v", err)
	}
	if len(rules.Trust.AIGenerationTools) == 0 {
		t.Fatalf("Trust.AIGenerationTools is empty, want embedded default fallback")
	}
}
