package ledger

import (
	"github.com/jonathan/article-engine/internal/types"
)

// imageCosts is the deterministic per-image price table keyed by
// (size, quality). Prices are provider list prices, not estimates.
var imageCosts = map[string]map[string]float64{
	types.ImageQualityStd: {
		types.ImageSizeSquare:   0.040,
		types.ImageSizeWide:     0.080,
		types.ImageSizePortrait: 0.080,
	},
	types.ImageQualityHD: {
		types.ImageSizeSquare:   0.080,
		types.ImageSizeWide:     0.120,
		types.ImageSizePortrait: 0.120,
	},
}

// LanguageModelCost computes the deterministic cost of one language-model
// call from token counts and per-1K-token rates.
func LanguageModelCost(inputTokens, outputTokens int, inputRatePerK, outputRatePerK float64) float64 {
	return float64(inputTokens)/1000.0*inputRatePerK + float64(outputTokens)/1000.0*outputRatePerK
}

// ImageCost looks up the per-image cost for a (size, quality) pair. Unknown
// combinations fall back to the standard square price.
func ImageCost(size, quality string) float64 {
	if byQuality, ok := imageCosts[quality]; ok {
		if cost, ok := byQuality[size]; ok {
			return cost
		}
	}
	return imageCosts[types.ImageQualityStd][types.ImageSizeSquare]
}
