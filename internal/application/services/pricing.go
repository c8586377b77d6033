package services

import (
	"math"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

// DefaultModelRate is the pricing key used for models without their own entry.
const DefaultModelRate = "default"

// Pricing converts token usage into USD.
type Pricing struct {
	rates    map[string]configs.ModelRate
	fallback configs.ModelRate
}

// NewPricing builds a rate table. Unknown models are charged the "default" entry or,
// without one, the highest configured prompt and completion rates.
func NewPricing(rates map[string]configs.ModelRate) *Pricing {
	p := &Pricing{rates: make(map[string]configs.ModelRate, len(rates))}
	for model, r := range rates {
		p.rates[model] = r
		p.fallback.PromptPer1K = math.Max(p.fallback.PromptPer1K, r.PromptPer1K)
		p.fallback.CompletionPer1K = math.Max(p.fallback.CompletionPer1K, r.CompletionPer1K)
	}
	if d, ok := rates[DefaultModelRate]; ok {
		p.fallback = d
	}
	return p
}

// Rate returns the model's rate; ok is false when the fallback rate was used.
func (p *Pricing) Rate(model string) (configs.ModelRate, bool) {
	if r, ok := p.rates[model]; ok && model != DefaultModelRate {
		return r, true
	}
	return p.fallback, false
}

func (p *Pricing) Cost(u quota.Usage) float64 {
	r, _ := p.Rate(u.Model)
	prompt := math.Max(float64(u.PromptTokens), 0)
	completion := math.Max(float64(u.CompletionTokens), 0)
	return prompt/1000*r.PromptPer1K + completion/1000*r.CompletionPer1K
}
