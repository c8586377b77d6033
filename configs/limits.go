package configs

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/user"
)

//go:embed limits.yaml
var defaultLimits []byte

// ModelRate is the price of one downstream model in USD per 1000 tokens.
type ModelRate struct {
	PromptPer1K     float64 `yaml:"usd_per_1k_prompt_tokens" json:"usd_per_1k_prompt_tokens"`
	CompletionPer1K float64 `yaml:"usd_per_1k_completion_tokens" json:"usd_per_1k_completion_tokens"`
}

type TierLimits struct {
	DailyCostLimitUSD *float64                                `yaml:"daily_cost_limit_usd"`
	Operations        map[quota.OperationClass]quota.LimitSpec `yaml:"operations"`
}

// LimitsConfig is the static limit table. It is loaded once and never mutated.
type LimitsConfig struct {
	// FallbackTier must be the most restrictive tier. It is used for unmapped roles,
	// directory failures and unknown (tier, operation class) pairs.
	FallbackTier quota.Tier                   `yaml:"fallback_tier"`
	Roles        map[user.UserRole]quota.Tier `yaml:"roles"`
	Tiers        map[quota.Tier]TierLimits    `yaml:"tiers"`
	Pricing      map[string]ModelRate         `yaml:"pricing"`
}

// LoadLimits reads the table at path, or the embedded default when path is empty.
func LoadLimits(path string) (*LimitsConfig, error) {
	data := defaultLimits
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read limits file: %w", err)
		}
		data = b
	}
	return ParseLimits(data)
}

// ParseLimits decodes, validates and normalises a limits document.
func ParseLimits(data []byte) (*LimitsConfig, error) {
	var l LimitsConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %w", quota.ErrInvalidLimits, err)
	}
	if err := l.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", quota.ErrInvalidLimits, err)
	}
	l.normalise()
	return &l, nil
}

func (l *LimitsConfig) validate() error {
	if len(l.Tiers) == 0 {
		return fmt.Errorf("no tiers configured")
	}
	if _, ok := l.Tiers[l.FallbackTier]; !ok {
		return fmt.Errorf("fallback_tier %q is not a configured tier", l.FallbackTier)
	}
	for role, tier := range l.Roles {
		if !role.IsValid() {
			return fmt.Errorf("unknown role %q", role)
		}
		if _, ok := l.Tiers[tier]; !ok {
			return fmt.Errorf("role %q maps to unknown tier %q", role, tier)
		}
	}
	for tier, tl := range l.Tiers {
		if tl.DailyCostLimitUSD != nil && *tl.DailyCostLimitUSD < 0 {
			return fmt.Errorf("tier %q: negative daily_cost_limit_usd", tier)
		}
		for op, spec := range tl.Operations {
			if op == "" {
				return fmt.Errorf("tier %q: empty operation class", tier)
			}
			if spec.Unconstrained && spec.HasWindows() {
				return fmt.Errorf("tier %q operation %q: unconstrained cannot be combined with windows", tier, op)
			}
			if !spec.Unconstrained && !spec.HasWindows() {
				return fmt.Errorf("tier %q operation %q: configure a window or set unconstrained: true", tier, op)
			}
		}
	}
	if err := l.validateFallbackTier(); err != nil {
		return err
	}
	if len(l.Pricing) == 0 {
		return fmt.Errorf("pricing: at least one model rate is required")
	}
	priced := false
	for model, rate := range l.Pricing {
		if rate.PromptPer1K < 0 || rate.CompletionPer1K < 0 {
			return fmt.Errorf("pricing %q: negative rate", model)
		}
		priced = priced || rate.PromptPer1K > 0 || rate.CompletionPer1K > 0
	}
	if !priced {
		return fmt.Errorf("pricing: every rate is zero")
	}
	return nil
}

// validateFallbackTier rejects a fallback tier that is more permissive than another tier,
// by daily budget or by an operation it leaves unconstrained.
func (l *LimitsConfig) validateFallbackTier() error {
	fb := l.Tiers[l.FallbackTier]
	for name, tl := range l.Tiers {
		if name == l.FallbackTier {
			continue
		}
		if tl.DailyCostLimitUSD != nil {
			if fb.DailyCostLimitUSD == nil {
				return fmt.Errorf("fallback_tier %q has no daily budget but tier %q does", l.FallbackTier, name)
			}
			if *fb.DailyCostLimitUSD > *tl.DailyCostLimitUSD {
				return fmt.Errorf("fallback_tier %q daily budget %.2f exceeds tier %q budget %.2f",
					l.FallbackTier, *fb.DailyCostLimitUSD, name, *tl.DailyCostLimitUSD)
			}
		}
		for op, spec := range tl.Operations {
			if fbSpec, ok := fb.Operations[op]; ok && fbSpec.Unconstrained && !spec.Unconstrained {
				return fmt.Errorf("fallback_tier %q leaves %q unconstrained but tier %q limits it", l.FallbackTier, op, name)
			}
		}
	}
	return nil
}

func (l *LimitsConfig) normalise() {
	for tier, tl := range l.Tiers {
		for op, spec := range tl.Operations {
			spec.Tier = tier
			spec.OperationClass = op
			if tl.DailyCostLimitUSD != nil {
				v := *tl.DailyCostLimitUSD
				spec.DailyCostLimit = &v
			}
			tl.Operations[op] = spec
		}
	}
}

// Spec returns the configured spec for an exact (tier, operation class) pair.
func (l *LimitsConfig) Spec(tier quota.Tier, op quota.OperationClass) (quota.LimitSpec, bool) {
	tl, ok := l.Tiers[tier]
	if !ok {
		return quota.LimitSpec{}, false
	}
	spec, ok := tl.Operations[op]
	return spec, ok
}

// DailyCostLimit returns the tier's budget, if one is configured.
func (l *LimitsConfig) DailyCostLimit(tier quota.Tier) (float64, bool) {
	tl, ok := l.Tiers[tier]
	if !ok || tl.DailyCostLimitUSD == nil {
		return 0, false
	}
	return *tl.DailyCostLimitUSD, true
}

// OperationClasses lists every operation class configured on any tier, sorted.
func (l *LimitsConfig) OperationClasses() []quota.OperationClass {
	seen := map[quota.OperationClass]struct{}{}
	for _, tl := range l.Tiers {
		for op := range tl.Operations {
			seen[op] = struct{}{}
		}
	}
	out := make([]quota.OperationClass, 0, len(seen))
	for op := range seen {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l *LimitsConfig) TierNames() []quota.Tier {
	out := make([]quota.Tier, 0, len(l.Tiers))
	for t := range l.Tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
