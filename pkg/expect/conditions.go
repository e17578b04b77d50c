package expect

import (
	"reflect"
	"regexp"
	"strings"
)

// MatchesConditions reports whether every declared field condition holds
// against the correspondingly named field of actual. An empty map is a
// vacuous pass; a nil condition value skips its field entirely.
func MatchesConditions(actual map[string]any, conds ConditionMap) bool {
	for field, cond := range conds {
		if cond == nil {
			continue
		}
		if !cond.Holds(actual[field]) {
			return false
		}
	}
	return true
}

// Holds evaluates the condition against a single actual value.
func (c *Condition) Holds(actual any) bool {
	if c == nil {
		return true
	}

	if c.isLiteral {
		return looseEqual(c.literal, actual)
	}

	// equals short-circuits every other operator
	if c.hasEquals || c.Equals != nil {
		return looseEqual(c.Equals, actual)
	}

	if c.OneOf != nil {
		found := false
		for _, candidate := range c.OneOf {
			if looseEqual(candidate, actual) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// numeric operators apply only when the actual value is numeric;
	// otherwise they are silently skipped, not failed
	if num, ok := toFloat(actual); ok {
		if c.Gte != nil && !(num >= *c.Gte) {
			return false
		}
		if c.Lte != nil && !(num <= *c.Lte) {
			return false
		}
		if c.Gt != nil && !(num > *c.Gt) {
			return false
		}
		if c.Lt != nil && !(num < *c.Lt) {
			return false
		}
	}

	// string operators likewise apply only to string actuals
	if str, ok := actual.(string); ok {
		if c.Contains != nil && !strings.Contains(str, *c.Contains) {
			return false
		}
		if c.Matches != nil {
			matched, err := regexp.MatchString(*c.Matches, str)
			if err != nil || !matched {
				return false
			}
		}
	}

	return true
}

// looseEqual compares across JSON and Go numeric representations so that
// an int from a fixture compares equal to a float64 from YAML.
func looseEqual(expected, actual any) bool {
	if en, ok := toFloat(expected); ok {
		if an, ok := toFloat(actual); ok {
			return en == an
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
