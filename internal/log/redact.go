// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import "strings"

const redacted = "***REDACTED***"

var sensitiveKeys = []string{"api_key", "apikey", "password", "secret", "token", "credential", "auth"}

// IsSensitiveKey reports whether a field name should never be logged verbatim.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of fields with sensitive values masked.
// Nested maps are walked; other values are copied as-is.
func Redact(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// RedactString masks a secret, keeping only a short prefix for correlation.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return redacted
	}
	return s[:4] + "…" + redacted
}
