// Package config loads the read-only rule tables that drive the
// metadata, watermark, and intrinsic detectors: trust lists, AI-tool
// dictionaries, platform profiles, and quantization/ICC seed data. All
// of it is loaded once at process start and handed to detector
// constructors explicitly — nothing here is a mutable package global.
package config

// TrustedSoftware describes one recognized professional photo tool.
type TrustedSoftware struct {
	Name             string `json:"name"`
	TrustLevel       string `json:"trust_level"`
	PenaltyReduction int    `json:"penalty_reduction"`
}

// TrustRules is the software/platform trust configuration consumed by
// the metadata validator (C5). TrustedPhotoSoftware is an ordered list,
// not a map: JSON object key order is not preserved by encoding/json,
// and the validator's first-match rule depends on the on-disk order.
type TrustRules struct {
	TrustedPhotoSoftware      []TrustedSoftware          `json:"trusted_photo_software"`
	AIGenerationTools         []string                   `json:"ai_generation_tools"`
	SuspiciousEditingTools    []string                   `json:"suspicious_editing_tools"`
	NativePhotoApps           []string                   `json:"native_photo_apps"`
	ScreenshotSoftwareKeywords []string                  `json:"screenshot_software_keywords"`
	MonitorProfileKeywords    []string                   `json:"monitor_profile_keywords"`
	StockPhotoServices        []string                   `json:"stock_photo_services"`
	KnownSocialMediaPlatforms []string                   `json:"known_social_media_platforms"`
}

// WatermarkRules is the dictionary configuration for the visual
// watermark detector (C6).
type WatermarkRules struct {
	AIProviderTokens    []string `json:"ai_provider_tokens"`
	StockProviderTokens []string `json:"stock_provider_tokens"`
}

// PlatformProfile describes one social-media upload pipeline's known
// resize/EXIF-stripping behavior.
type PlatformProfile struct {
	MaxDimension     int      `json:"max_dimension"`
	StripsEXIF       bool     `json:"strips_exif"`
	SoftwareKeywords []string `json:"software_keywords"`
}

// QuantizationTable is an 8x8 table flattened in zig-zag-free row-major
// order, matching the QTable.Values order jpegscan.Read extracts DQT bytes in.
type QuantizationTable struct {
	Name       string `json:"name,omitempty"`
	Luminance  []int  `json:"luminance,omitempty"`
	Chrominance []int `json:"chrominance,omitempty"`
}

// QuantizationDB is the seed database the intrinsic analyzer (C10)
// matches observed DQT tables against.
type QuantizationDB struct {
	Cameras    map[string]QuantizationTable `json:"cameras"`
	AIPatterns []QuantizationTable          `json:"ai_patterns"`
}

// ICCRules drives the ICC-profile sub-check of the intrinsic analyzer.
type ICCRules struct {
	MonitorVendorSubstrings  []string            `json:"monitor_vendor_substrings"`
	EditingSoftwareProfiles  []string            `json:"editing_software_profiles"`
	CameraVendorTags         map[string][]string `json:"camera_vendor_tags"`
	GenericProfileNames      []string            `json:"generic_profile_names"`
}

// Rules aggregates every table loaded at startup. It is immutable after
// Load returns and is safe to share across concurrent requests without
// locking.
type Rules struct {
	Trust            TrustRules
	Watermark        WatermarkRules
	PlatformProfiles map[string]PlatformProfile
	Quantization     QuantizationDB
	ICC              ICCRules
}
