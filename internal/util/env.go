// Package util holds small helpers shared across components: phone masking
// for logs and environment variable parsing.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// BoolEnv reads a boolean environment variable. Accepted spellings are
// true/1/yes/on and false/0/no/off, case-insensitive; unset or
// unrecognized values fall back to def.
func BoolEnv(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return def
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("Unrecognized boolean environment value, using default", "key", key, "value", val, "default", def)
	return def
}
