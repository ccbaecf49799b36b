package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stewardhq/steward/internal/domain"
)

// VIPSet is a pre-fetched, lowercase set of an owner's VIP addresses.
// in_vip_list is the only operator with an external dependency; callers
// load the set once per evaluation batch and thread it through explicitly
// instead of having the matcher reach out to a store per condition.
type VIPSet map[string]struct{}

// Contains reports whether the address is in the set (case-insensitive).
func (s VIPSet) Contains(address string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(address))]
	return ok
}

// ExtractField resolves a dot-notation path into nested event data.
// Returns (nil, false) when any segment is missing or a non-map is
// traversed into; a missing field matches only is_empty.
func ExtractField(data map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Match evaluates a single condition against event data. It never panics
// and never errors: malformed values, bad regexes, and failed numeric
// coercions all fail closed (return false).
func Match(cond domain.Condition, event map[string]any, vips VIPSet) bool {
	val, present := ExtractField(event, cond.Field)
	if !present || val == nil {
		return cond.Operator == domain.OpIsEmpty
	}

	switch cond.Operator {
	case domain.OpIsEmpty:
		return isEmptyValue(val)

	case domain.OpEquals:
		return strings.EqualFold(toString(val), toString(cond.Value))

	case domain.OpNotEquals:
		return !strings.EqualFold(toString(val), toString(cond.Value))

	case domain.OpContains:
		return strings.Contains(lower(val), lower(cond.Value))

	case domain.OpStartsWith:
		return strings.HasPrefix(lower(val), lower(cond.Value))

	case domain.OpEndsWith:
		return strings.HasSuffix(lower(val), lower(cond.Value))

	case domain.OpMatchesRegex:
		re, err := regexp.Compile(toString(cond.Value))
		if err != nil {
			return false
		}
		return re.MatchString(toString(val))

	case domain.OpGreaterThan:
		a, aok := toFloat(val)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b

	case domain.OpLessThan:
		a, aok := toFloat(val)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b

	case domain.OpInList:
		return inList(val, cond.Value)

	case domain.OpNotInList:
		return !inList(val, cond.Value)

	case domain.OpInVIPList:
		return vips.Contains(toString(val))
	}

	return false
}

// MatchAll evaluates every condition of a policy, ANDed together. An empty
// condition list matches everything. MatchAll mutates nothing: identical
// inputs always yield identical results.
func MatchAll(conds []domain.Condition, event map[string]any, vips VIPSet) bool {
	for _, c := range conds {
		if !Match(c, event, vips) {
			return false
		}
	}
	return true
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case nil:
		return true
	}
	return false
}

func inList(val, list any) bool {
	items, ok := list.([]any)
	if !ok {
		// A scalar "list" degenerates to equality.
		return strings.EqualFold(toString(val), toString(list))
	}
	needle := lower(val)
	for _, item := range items {
		if lower(item) == needle {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func lower(v any) string {
	return strings.ToLower(toString(v))
}

// toFloat coerces JSON scalars to float64. Returns false on anything that
// doesn't parse; numeric operators fail closed on coercion error.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
