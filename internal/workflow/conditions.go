package workflow

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// CheckConditions reports whether every condition holds against the entity snapshot.
// An empty list always matches. Unknown operators never match.
func CheckConditions(conditions []domain.Condition, entity map[string]any) bool {
	for _, cond := range conditions {
		if !checkCondition(cond, entity) {
			return false
		}
	}
	return true
}

func checkCondition(cond domain.Condition, entity map[string]any) bool {
	actual := normalize(entity[cond.Field])
	expected := normalize(cond.Value)

	switch cond.Operator {
	case domain.OperatorEquals:
		return looseEqual(actual, expected)
	case domain.OperatorNotEquals:
		return !looseEqual(actual, expected)
	case domain.OperatorContains:
		return contains(actual, expected)
	case domain.OperatorGreaterThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(expected)
		return okA && okB && a > b
	case domain.OperatorLessThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(expected)
		return okA && okB && a < b
	default:
		return false
	}
}

// normalize folds typed values from snapshots into the JSON-ish shapes stored conditions use.
func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339Nano)
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case fmt.Stringer:
		return val.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

// looseEqual compares like a dynamically typed "==": numbers and booleans are compared
// numerically against numeric strings, everything else by string form.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) || isNumeric(b) {
		x, okX := toNumber(a)
		y, okY := toNumber(b)
		return okX && okY && x == y
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func contains(haystack, needle any) bool {
	if haystack == nil {
		return false
	}
	if s, ok := haystack.(string); ok {
		if needle == nil {
			return false
		}
		return strings.Contains(s, fmt.Sprint(needle))
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(normalize(rv.Index(i).Interface()), needle) {
				return true
			}
		}
	}
	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
