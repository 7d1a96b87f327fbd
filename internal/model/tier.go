package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidTier is returned when a value does not name one of the three tiers.
var ErrInvalidTier = errors.New("invalid deduction tier")

// Tier is a deductibility classification expressed in percent.
type Tier int

// The three deduction tiers.
const (
	Tier0   Tier = 0
	Tier50  Tier = 50
	Tier100 Tier = 100
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{Tier0, Tier50, Tier100}

// Category tokens used in the classification contract.
const (
	LabelEntertainment  = "entertainment"
	LabelMeals          = "meals"
	LabelEmployeeEvents = "employee-events"
)

// Valid reports whether t is one of the enumerated tiers.
func (t Tier) Valid() bool {
	return t == Tier0 || t == Tier50 || t == Tier100
}

// Rate returns the deduction rate (0, 0.5 or 1).
func (t Tier) Rate() decimal.Decimal {
	return decimal.NewFromInt(int64(t)).Div(decimal.NewFromInt(100))
}

// Label returns the category token for the tier.
func (t Tier) Label() string {
	switch t {
	case Tier50:
		return LabelMeals
	case Tier100:
		return LabelEmployeeEvents
	default:
		return LabelEntertainment
	}
}

func (t Tier) String() string {
	return fmt.Sprintf("%d%%", int(t))
}

// MarshalJSON rejects tiers outside the enumeration.
func (t Tier) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTier, int(t))
	}
	return []byte(strconv.Itoa(int(t))), nil
}

// UnmarshalJSON accepts any representation ParseTier understands.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTierValue(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalYAML accepts any representation ParseTier understands.
func (t *Tier) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseTierValue(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTierValue converts a decoded JSON or YAML scalar into a Tier.
func ParseTierValue(v any) (Tier, error) {
	switch val := v.(type) {
	case float64:
		return tierFromNumber(val)
	case int:
		return tierFromNumber(float64(val))
	case int64:
		return tierFromNumber(float64(val))
	case string:
		return ParseTier(val)
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidTier, v)
	}
}

// ParseTier parses "0", "50", "100", "0.5", "1.0", "50%" and the category
// tokens. Anything else is an error; callers decide how to recover.
func ParseTier(s string) (Tier, error) {
	clean := strings.ToLower(strings.TrimSpace(s))
	switch clean {
	case LabelEntertainment:
		return Tier0, nil
	case LabelMeals:
		return Tier50, nil
	case LabelEmployeeEvents, "employee events", "employee_events":
		return Tier100, nil
	}

	isPercent := strings.HasSuffix(clean, "%")
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "%"))

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	if isPercent {
		return tierFromPercent(f, s)
	}
	return tierFromNumber(f)
}

// tierFromNumber reads fractions (0.5) and percents (50) alike.
func tierFromNumber(f float64) (Tier, error) {
	switch f {
	case 0:
		return Tier0, nil
	case 0.5, 50:
		return Tier50, nil
	case 1, 100:
		return Tier100, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrInvalidTier, f)
}

func tierFromPercent(f float64, raw string) (Tier, error) {
	switch f {
	case 0:
		return Tier0, nil
	case 50:
		return Tier50, nil
	case 100:
		return Tier100, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTier, raw)
}
