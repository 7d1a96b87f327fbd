// Package classification holds the deterministic override rules that take
// precedence over the model's answer.
package classification

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/Veraticus/spice-deduct/internal/normalize"
)

// Rule priorities. Higher priorities are checked first.
const (
	PriorityTeamMeal = 300
	PriorityRetailer = 200
	PriorityKnownBar = 100
)

// Retailer is a known multi-purpose store forced to a fixed tier.
type Retailer struct {
	Pattern string
	Tier    model.Tier
}

// Config is the override data. It is passed in, never package state.
type Config struct {
	KnownBars []string
	Retailers []Retailer
}

// Rule is one compiled phrase rule.
type Rule struct {
	regex      *regexp.Regexp
	Name       string
	Phrase     string
	Provenance model.Provenance
	Tier       model.Tier
	Priority   int
}

// Decision is the result of the winning rule.
type Decision struct {
	Rule       string
	Provenance model.Provenance
	Tier       model.Tier
}

// Rules applies overrides in priority order: the team-meal tag, then known
// retailers, then known bars. Retailers outrank bars so a wholesale "club"
// is never treated as a bar.
type Rules struct {
	rules []Rule
}

// NewRules compiles cfg. Phrases are matched as whole words against the
// normalized vendor name.
func NewRules(cfg Config) (*Rules, error) {
	rules := make([]Rule, 0, len(cfg.KnownBars)+len(cfg.Retailers))

	for _, r := range cfg.Retailers {
		if !r.Tier.Valid() {
			return nil, fmt.Errorf("retailer %q: %w: %d", r.Pattern, model.ErrInvalidTier, int(r.Tier))
		}
		rule, err := compile("retailer", r.Pattern, model.ProvenanceOverrideRetailer, r.Tier, PriorityRetailer)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	for _, bar := range cfg.KnownBars {
		rule, err := compile("known_bar", bar, model.ProvenanceOverrideKnownBar, model.Tier0, PriorityKnownBar)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	// Longer phrases are more specific within a priority band
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		if len(rules[i].Phrase) != len(rules[j].Phrase) {
			return len(rules[i].Phrase) > len(rules[j].Phrase)
		}
		return rules[i].Phrase < rules[j].Phrase
	})

	return &Rules{rules: rules}, nil
}

func compile(kind, pattern string, provenance model.Provenance, tier model.Tier, priority int) (Rule, error) {
	phrase := normalize.Vendor(pattern)
	if phrase == "" {
		return Rule{}, fmt.Errorf("failed to compile %s rule: pattern %q is empty after normalization", kind, pattern)
	}

	regex, err := regexp.Compile(`(?:^| )` + regexp.QuoteMeta(phrase) + `(?: |$)`)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to compile %s rule %q: %w", kind, pattern, err)
	}

	return Rule{
		regex:      regex,
		Name:       kind + ":" + phrase,
		Phrase:     phrase,
		Provenance: provenance,
		Tier:       tier,
		Priority:   priority,
	}, nil
}

// Apply returns the decision of the highest-priority matching rule.
func (r *Rules) Apply(vendor model.VendorRecord) (Decision, bool) {
	if vendor.TeamMeal {
		return Decision{Rule: "team_meal", Provenance: model.ProvenanceOverrideTeamMeal, Tier: model.Tier100}, true
	}

	name := vendor.Key
	if name == "" {
		name = normalize.Vendor(vendor.Name)
	}

	for _, rule := range r.rules {
		if rule.regex.MatchString(name) {
			return Decision{Rule: rule.Name, Provenance: rule.Provenance, Tier: rule.Tier}, true
		}
	}
	return Decision{}, false
}

// Count returns the number of compiled phrase rules.
func (r *Rules) Count() int {
	return len(r.rules)
}
