package jsondata

import (
	"encoding/base64"
	"encoding/json"
	"maps"
	"math"
	"slices"
)

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func toInt64(v any, path string) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, invalid(path, "expected integer, got %s", n)
		}
		return i, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, invalid(path, "expected integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, invalid(path, "expected integer, got %T", v)
	}
}

func toInt32(v any, path string) (int32, error) {
	i, err := toInt64(v, path)
	if err != nil {
		return 0, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, invalid(path, "%d is outside the int range", i)
	}
	return int32(i), nil
}

func toFloat64(v any, path string) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, invalid(path, "expected number, got %s", n)
		}
		return f, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, invalid(path, "expected number, got %T", v)
	}
}

func toFloat32(v any, path string) (float32, error) {
	f, err := toFloat64(v, path)
	if err != nil {
		return 0, err
	}
	if math.Abs(f) > math.MaxFloat32 {
		return 0, invalid(path, "%g is outside the float range", f)
	}
	return float32(f), nil
}

func toBytes(v any, path string) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, invalid(path, "expected base64 string, got %T", v)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, invalid(path, "invalid base64: %v", err)
	}
	return b, nil
}
