// Package license validates and normalizes content license strings against
// the allow-list of licenses the platform may redistribute.
package license

import (
	"strings"

	"github.com/drmixer/elevated-importer/internal/domain"
)

// canonical maps a normalized lookup key to the canonical license label.
var canonical = map[string]string{
	"cc by":          "CC BY",
	"cc by 4.0":      "CC BY",
	"cc-by":          "CC BY",
	"cc by-sa":       "CC BY-SA",
	"cc by-sa 4.0":   "CC BY-SA",
	"cc-by-sa":       "CC BY-SA",
	"cc by-nc":       "CC BY-NC",
	"cc by-nc 4.0":   "CC BY-NC",
	"cc-by-nc":       "CC BY-NC",
	"cc by-nc-sa":    "CC BY-NC-SA",
	"cc-by-nc-sa":    "CC BY-NC-SA",
	"cc by-nd":       "CC BY-ND",
	"cc0":            "CC0",
	"public domain":  "Public Domain",
	"publicdomain":   "Public Domain",
	"gfdl":           "GFDL",
	"mit":            "MIT",
	"all rights reserved with permission": "Used With Permission",
}

func lookupKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	return strings.Join(strings.Fields(key), " ")
}

// Assert checks raw against the allow-list and returns the canonical label.
// Unknown licenses return a ValidationError naming the rejected string.
func Assert(raw string) (string, error) {
	if c, ok := canonical[lookupKey(raw)]; ok {
		return c, nil
	}
	return "", domain.NewValidationError("license %q is not in the allowed set", strings.TrimSpace(raw))
}

// Resolve applies the fallback policy some providers need: try the raw
// string, then a variant with a trailing " us" jurisdiction suffix stripped,
// then a variant with a trailing parenthetical stripped. The first candidate
// that validates wins; otherwise the last error propagates.
func Resolve(raw string) (string, error) {
	candidates := []string{raw}

	trimmed := strings.TrimSpace(raw)
	if lower := strings.ToLower(trimmed); strings.HasSuffix(lower, " us") {
		candidates = append(candidates, trimmed[:len(trimmed)-len(" us")])
	}
	if idx := strings.LastIndex(trimmed, "("); idx > 0 && strings.HasSuffix(trimmed, ")") {
		candidates = append(candidates, strings.TrimSpace(trimmed[:idx]))
	}

	var lastErr error
	for _, cand := range candidates {
		c, err := Assert(cand)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return "", lastErr
}
