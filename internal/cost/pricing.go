package cost

import (
	"sort"
	"strings"
)

// Pricing is USD per one million tokens.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input" json:"input"`
	CachedPerMillion float64 `yaml:"cached" json:"cached"`
	OutputPerMillion float64 `yaml:"output" json:"output"`
}

// defaultPricing is keyed by model-name prefix. The longest matching prefix
// wins.
var defaultPricing = map[string]Pricing{
	"grok":              {InputPerMillion: 0.20, CachedPerMillion: 0.05, OutputPerMillion: 0.50},
	"grok-4":            {InputPerMillion: 3.00, CachedPerMillion: 0.75, OutputPerMillion: 15.00},
	"grok-4-fast":       {InputPerMillion: 0.20, CachedPerMillion: 0.05, OutputPerMillion: 0.50},
	"grok-code-fast":    {InputPerMillion: 0.20, CachedPerMillion: 0.02, OutputPerMillion: 1.50},
	"claude-sonnet":     {InputPerMillion: 3.00, CachedPerMillion: 0.30, OutputPerMillion: 15.00},
	"claude-3-5-sonnet": {InputPerMillion: 3.00, CachedPerMillion: 0.30, OutputPerMillion: 15.00},
	"claude-haiku":      {InputPerMillion: 1.00, CachedPerMillion: 0.10, OutputPerMillion: 5.00},
	"claude-opus":       {InputPerMillion: 15.00, CachedPerMillion: 1.50, OutputPerMillion: 75.00},
	"gpt-4o":            {InputPerMillion: 2.50, CachedPerMillion: 1.25, OutputPerMillion: 10.00},
	"gpt-4o-mini":       {InputPerMillion: 0.15, CachedPerMillion: 0.075, OutputPerMillion: 0.60},
	"gpt-4.1":           {InputPerMillion: 2.00, CachedPerMillion: 0.50, OutputPerMillion: 8.00},
	"gpt-4.1-mini":      {InputPerMillion: 0.40, CachedPerMillion: 0.10, OutputPerMillion: 1.60},
	"gemini-2.5-pro":    {InputPerMillion: 1.25, CachedPerMillion: 0.31, OutputPerMillion: 10.00},
	"gemini-2.5-flash":  {InputPerMillion: 0.30, CachedPerMillion: 0.075, OutputPerMillion: 2.50},
}

// fallbackPricing applies when no model prefix matches, keyed by provider.
var fallbackPricing = map[string]Pricing{
	"xai":       defaultPricing["grok"],
	"anthropic": defaultPricing["claude-sonnet"],
	"openai":    defaultPricing["gpt-4o"],
	"gemini":    defaultPricing["gemini-2.5-flash"],
}

// PriceTable resolves model prices, with optional overrides.
type PriceTable struct {
	prices   map[string]Pricing
	prefixes []string
}

// NewPriceTable merges overrides over the built-in table.
func NewPriceTable(overrides map[string]Pricing) *PriceTable {
	prices := make(map[string]Pricing, len(defaultPricing)+len(overrides))
	for k, v := range defaultPricing {
		prices[k] = v
	}
	for k, v := range overrides {
		prices[strings.ToLower(k)] = v
	}
	prefixes := make([]string, 0, len(prices))
	for k := range prices {
		prefixes = append(prefixes, k)
	}
	// Longest first so "gpt-4o-mini" beats "gpt-4o".
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	return &PriceTable{prices: prices, prefixes: prefixes}
}

// Lookup returns the pricing for a provider/model pair.
func (t *PriceTable) Lookup(provider, model string) Pricing {
	m := strings.ToLower(model)
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(m, prefix) {
			return t.prices[prefix]
		}
	}
	if p, ok := fallbackPricing[strings.ToLower(provider)]; ok {
		return p
	}
	return Pricing{}
}

// Estimate returns the USD cost of a call. promptTokens includes cached
// tokens, which are billed at the cached rate.
func (p Pricing) Estimate(promptTokens, cachedTokens, completionTokens int64) float64 {
	if cachedTokens > promptTokens {
		cachedTokens = promptTokens
	}
	uncached := promptTokens - cachedTokens
	return (float64(uncached)*p.InputPerMillion +
		float64(cachedTokens)*p.CachedPerMillion +
		float64(completionTokens)*p.OutputPerMillion) / 1_000_000
}
