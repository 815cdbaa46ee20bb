package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed data/trust.json data/watermark.json data/platform_profiles.json data/quantization.json data/icc.json
var embedded embed.FS

// Load builds the default Rules from the binary's embedded seed data.
// overridePath, if non-empty, is a directory holding any of the same
// five JSON files; files present there replace the embedded default
// for that table only, matching the teacher's "env/disk override wins"
// config-loading convention.
func Load(overridePath string) (*Rules, error) {
	r := &Rules{}

	if err := loadJSON(overridePath, "trust.json", &r.Trust); err != nil {
		return nil, fmt.Errorf("loading trust rules: %w", err)
	}
	if err := loadJSON(overridePath, "watermark.json", &r.Watermark); err != nil {
		return nil, fmt.Errorf("loading watermark rules: %w", err)
	}
	if err := loadJSON(overridePath, "platform_profiles.json", &r.PlatformProfiles); err != nil {
		return nil, fmt.Errorf("loading platform profiles: %w", err)
	}
	if err := loadJSON(overridePath, "quantization.json", &r.Quantization); err != nil {
		return nil, fmt.Errorf("loading quantization db: %w", err)
	}
	if err := loadJSON(overridePath, "icc.json", &r.ICC); err != nil {
		return nil, fmt.Errorf("loading icc rules: %w", err)
	}

	return r, nil
}

func loadJSON(overridePath, name string, dst any) error {
	if overridePath != "" {
		if data, err := os.ReadFile(overridePath + "/" + name); err == nil {
			return json.Unmarshal(data, dst)
		}
	}

	data, err := embedded.ReadFile("data/" + name)
	if err != nil {
		return fmt.Errorf("reading embedded %s: %w", name, err)
	}
	return json.Unmarshal(data, dst)
}
