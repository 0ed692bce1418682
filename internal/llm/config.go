// Package llm provides centralized LLM configuration and client abstractions
// for article generation, including per-model pricing for cost accounting.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: outlines, metadata, short summaries
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: chapter writing
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning: long-form coherent articles
	TierAdvanced ModelTier = "advanced"
)

// ModelRates holds the per-1K-token billing rates for one model.
type ModelRates struct {
	InputPerK  float64
	OutputPerK float64
}

// Config holds the model configuration for the application
type Config struct {
	Models map[ModelTier]string
	Rates  map[ModelTier]ModelRates
}

// DefaultConfig returns the default Gemini model configuration with list
// prices per 1K tokens.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Rates: map[ModelTier]ModelRates{
			TierLite:     {InputPerK: 0.0001, OutputPerK: 0.0004},
			TierStandard: {InputPerK: 0.0003, OutputPerK: 0.0025},
			TierAdvanced: {InputPerK: 0.00125, OutputPerK: 0.01},
		},
	}
}

// GetModel returns the model name for a given tier, falling back through
// standard and lite when the tier is not configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// GetRates returns the billing rates for a tier. Unconfigured tiers bill at
// the standard rate.
func (c *Config) GetRates(tier ModelTier) ModelRates {
	if rates, ok := c.Rates[tier]; ok {
		return rates
	}
	return c.Rates[TierStandard]
}

// TierFromString maps a configuration string to a ModelTier, defaulting to
// standard for unknown values.
func TierFromString(s string) ModelTier {
	switch ModelTier(s) {
	case TierLite, TierStandard, TierAdvanced:
		return ModelTier(s)
	default:
		return TierStandard
	}
}
