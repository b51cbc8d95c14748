package image

import (
	"image-pipeline-server/internal/platform/config"
)

const (
	// MaxLabel is the output id of the capped full-size copy.
	MaxLabel = "max"
	// WebPSuffix is appended to a variant label for its webp rendition.
	WebPSuffix = "_webp"

	DefaultMaxSize = 2500
	DefaultQuality = 80
)

// DefaultVariants returns xs/s/m/l at quality 80.
func DefaultVariants() []VariantSpec {
	return []VariantSpec{
		{Label: "xs", Width: 50, Quality: DefaultQuality},
		{Label: "s", Width: 220, Quality: DefaultQuality},
		{Label: "m", Width: 800, Quality: DefaultQuality},
		{Label: "l", Width: 1280, Quality: DefaultQuality},
	}
}

// VariantsFromConfig converts configured variants, defaulting quality to 80.
func VariantsFromConfig(cfg []config.VariantConfig) []VariantSpec {
	if len(cfg) == 0 {
		return DefaultVariants()
	}
	out := make([]VariantSpec, 0, len(cfg))
	for _, v := range cfg {
		q := v.Quality
		if q == 0 {
			q = DefaultQuality
		}
		out = append(out, VariantSpec{Label: v.Label, Width: v.Width, Quality: q})
	}
	return out
}

// OutputIDs lists the keys of the output URL map for the given variants.
func OutputIDs(variants []VariantSpec) []string {
	ids := make([]string, 0, 1+2*len(variants))
	ids = append(ids, MaxLabel)
	for _, v := range variants {
		ids = append(ids, v.Label, v.Label+WebPSuffix)
	}
	return ids
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}
