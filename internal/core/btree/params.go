package btree

import (
	"fmt"
	"math"
)

// ParamNode is set by the binder on every action leaf's params. It holds the bound
// node's id, so a factory can derive per-position state such as blackboard keys.
const ParamNode = "_node"

// Definition params come from YAML (int) or JSON (float64); these helpers accept both.

func paramString(params map[string]any, key string) (string, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, fmt.Errorf("param %q: want string, got %T", key, v)
	}
	return s, true, nil
}

func paramBool(params map[string]any, key string) (bool, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, true, fmt.Errorf("param %q: want bool, got %T", key, v)
	}
	return b, true, nil
}

func paramUint(params map[string]any, key string) (uint64, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		if n >= 0 {
			return uint64(n), true, nil
		}
	case int64:
		if n >= 0 {
			return uint64(n), true, nil
		}
	case uint64:
		return n, true, nil
	case float64:
		if n >= 0 && n == math.Trunc(n) {
			return uint64(n), true, nil
		}
	}
	return 0, true, fmt.Errorf("param %q: want non-negative integer, got %v", key, v)
}

func paramInt(params map[string]any, key string) (int64, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true, nil
		}
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true, nil
		}
	}
	return 0, true, fmt.Errorf("param %q: want integer, got %v", key, v)
}

// requireString is paramString for mandatory params.
func requireString(params map[string]any, key string) (string, error) {
	s, ok, err := paramString(params, key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", fmt.Errorf("param %q is required", key)
	}
	return s, nil
}
