package dispatch

import (
	"strings"

	"conductor/internal/domain"
	"conductor/internal/infra/config"
)

// ModelPrice is a USD price pair per million tokens.
type ModelPrice struct {
	Input  float64
	Output float64
}

// defaultPrice is the conservative tier applied to unknown models.
var defaultPrice = ModelPrice{Input: 1.00, Output: 2.00}

// defaultPrices covers the models the stock connectors are pointed at.
// Values are USD per million tokens.
var defaultPrices = map[string]ModelPrice{
	"gpt-4":            {Input: 30.00, Output: 60.00},
	"gpt-4o":           {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":      {Input: 0.15, Output: 0.60},
	"gpt-3.5-turbo":    {Input: 0.50, Output: 1.50},
	"gemini-pro":       {Input: 0.50, Output: 1.50},
	"gemini-1.5-pro":   {Input: 1.25, Output: 5.00},
	"gemini-1.5-flash": {Input: 0.075, Output: 0.30},
	"llama3":           {Input: 0, Output: 0}, // local inference
}

// Pricing resolves per-model token prices with config overrides.
type Pricing struct {
	overrides map[string]ModelPrice
}

// NewPricing builds a price table layering config overrides on the defaults.
func NewPricing(overrides map[string]config.ModelPriceConfig) *Pricing {
	p := &Pricing{overrides: make(map[string]ModelPrice, len(overrides))}
	for model, price := range overrides {
		p.overrides[strings.ToLower(model)] = ModelPrice{Input: price.Input, Output: price.Output}
	}
	return p
}

// Price returns the price pair for a model, falling back to the default tier.
func (p *Pricing) Price(model string) ModelPrice {
	key := strings.ToLower(model)
	if p != nil {
		if price, ok := p.overrides[key]; ok {
			return price
		}
	}
	if price, ok := defaultPrices[key]; ok {
		return price
	}
	return defaultPrice
}

// Cost computes the USD cost of one call from its token usage.
func (p *Pricing) Cost(model string, usage domain.Usage) float64 {
	price := p.Price(model)
	return float64(usage.InputTokens)/1_000_000*price.Input +
		float64(usage.OutputTokens)/1_000_000*price.Output
}
