package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/model"
)

const maxRationale = 500

// Classification is a parsed and validated collaborator answer.
type Classification struct {
	BusinessType string
	Label        string
	Rationale    string
	Confidence   string
	Tier         model.Tier
	// Uncertain is set when the answer is internally inconsistent,
	// self-reported as low confidence, or recovered from free text.
	Uncertain bool
}

type responseContract struct {
	DeductionRate  json.RawMessage `json:"deduction_rate"`
	Tier           json.RawMessage `json:"tier"`
	Confidence     json.RawMessage `json:"confidence"`
	BusinessType   string          `json:"business_type"`
	Classification string          `json:"classification"`
	Reason         string          `json:"reason"`
	Rationale      string          `json:"rationale"`
}

// ParseResponse extracts the tier from text. An answer without a
// recognizable tier is ErrInvalidResponse, never a silent default.
func ParseResponse(text string) (Classification, error) {
	cleaned := cleanMarkdownWrapper(text)

	object, ok := extractJSONObject(cleaned)
	if !ok {
		return parseFreeText(cleaned)
	}

	var raw responseContract
	if err := json.Unmarshal([]byte(object), &raw); err != nil {
		return Classification{}, fmt.Errorf("%w: malformed JSON: %w", common.ErrInvalidResponse, err)
	}

	rateTier, hasRate, err := rawTier(raw.DeductionRate)
	if err != nil {
		return Classification{}, err
	}
	if !hasRate {
		if rateTier, hasRate, err = rawTier(raw.Tier); err != nil {
			return Classification{}, err
		}
	}

	tokenTier, hasToken := tokenTier(raw.Classification)

	result := Classification{
		BusinessType: strings.TrimSpace(raw.BusinessType),
		Rationale:    truncate(firstNonEmpty(raw.Reason, raw.Rationale)),
		Confidence:   confidence(raw.Confidence),
	}

	switch {
	case hasRate:
		result.Tier = rateTier
		result.Uncertain = hasToken && tokenTier != rateTier
	case hasToken:
		result.Tier = tokenTier
	default:
		return Classification{}, fmt.Errorf("%w: no deduction_rate or classification in %q", common.ErrInvalidResponse, truncate(object))
	}

	result.Label = result.Tier.Label()
	if isLowConfidence(result.Confidence) {
		result.Uncertain = true
	}
	return result, nil
}

func rawTier(raw json.RawMessage) (model.Tier, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("%w: %w", common.ErrInvalidResponse, err)
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, false, nil
	}
	tier, err := model.ParseTierValue(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", common.ErrInvalidResponse, err)
	}
	return tier, true, nil
}

func tokenTier(token string) (model.Tier, bool) {
	clean := strings.ToLower(strings.TrimSpace(token))
	clean = strings.NewReplacer(" ", "-", "_", "-").Replace(clean)
	switch clean {
	case "":
		return 0, false
	case "meal":
		clean = model.LabelMeals
	case "employee-event", "employee-meal", "employee-meals":
		clean = model.LabelEmployeeEvents
	}
	tier, err := model.ParseTier(clean)
	if err != nil {
		return 0, false
	}
	return tier, true
}

func confidence(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(val))
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}

func isLowConfidence(c string) bool {
	if c == "low" {
		return true
	}
	f, err := strconv.ParseFloat(c, 64)
	return err == nil && f < 0.5
}

// cleanMarkdownWrapper strips a ```json fence around the payload.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:]
	} else {
		content = strings.TrimPrefix(content, "json")
	}
	if end := strings.LastIndex(content, "```"); end >= 0 {
		content = content[:end]
	}
	return strings.TrimSpace(content)
}

// extractJSONObject returns the first balanced {...} in s, skipping braces
// inside string literals.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var percentPattern = regexp.MustCompile(`\b(100|50|0)\s?%`)

// parseFreeText recovers a tier from prose when exactly one tier is named.
func parseFreeText(text string) (Classification, error) {
	found := map[model.Tier]bool{}
	for _, m := range percentPattern.FindAllStringSubmatch(text, -1) {
		tier, err := model.ParseTier(m[1])
		if err == nil {
			found[tier] = true
		}
	}
	lower := strings.ToLower(text)
	for _, tier := range model.Tiers {
		if strings.Contains(lower, tier.Label()) {
			found[tier] = true
		}
	}

	if len(found) != 1 {
		return Classification{}, fmt.Errorf("%w: could not find a single tier in %q", common.ErrInvalidResponse, truncate(text))
	}

	var tier model.Tier
	for t := range found {
		tier = t
	}
	return Classification{
		Tier:      tier,
		Label:     tier.Label(),
		Rationale: truncate(text),
		Uncertain: true,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxRationale {
		return s
	}
	return string(runes[:maxRationale]) + "..."
}
