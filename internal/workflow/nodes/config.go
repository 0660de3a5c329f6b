// Package nodes implements the built-in Node Strategy Registry entries
// (spec §4.8): typed extraction, monitoring and notification nodes, plus
// the untyped "generic" legacy passthrough.
package nodes

import "fmt"

func configString(cfg map[string]interface{}, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("nodes: missing config key %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("nodes: config key %q is not a string (got %T)", key, v)
	}
	return s, nil
}

func configInt(cfg map[string]interface{}, key string, fallback int) int {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func configBool(cfg map[string]interface{}, key string, fallback bool) bool {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}
