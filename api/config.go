package api

import (
	"fmt"
	"strconv"
)

// MetricConfig holds backend-specific options for one metric, e.g.
// {"model_path": "/models/vectors.vec"}. Values usually come from YAML, so
// numbers may arrive as int, float64 or string.
type MetricConfig map[string]any

// Has reports whether key is set.
func (c MetricConfig) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// String returns the string value of key, or def when unset.
func (c MetricConfig) String(key, def string) (string, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("%s: expected string, got %T", key, v)
	}
}

// Float returns the numeric value of key, or def when unset.
func (c MetricConfig) Float(key string, def float64) (float64, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}

// Int returns the integer value of key, or def when unset.
func (c MetricConfig) Int(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s: expected integer, got %v", key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%s: expected integer, got %T", key, v)
	}
}

// Bool returns the boolean value of key, or def when unset.
func (c MetricConfig) Bool(key string, def bool) (bool, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		p, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		return p, nil
	default:
		return false, fmt.Errorf("%s: expected bool, got %T", key, v)
	}
}
