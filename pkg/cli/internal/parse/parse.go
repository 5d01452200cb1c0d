// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"fmt"
	"strings"
)

// KeyValue parses a "key=value" string. The key must be non-empty.
func KeyValue(s string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", false
	}
	return strings.TrimSpace(key), value, true
}

// Params parses "key=value" arguments into a map. Later keys win.
func Params(args []string) (map[string]string, error) {
	result := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := KeyValue(a)
		if !ok {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", a)
		}
		result[k] = v
	}
	return result, nil
}

// SplitTrim splits a string by separator and trims each part, dropping
// empty parts.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
