// Package limits normalizes and enforces the configured import size caps.
package limits

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/drmixer/elevated-importer/internal/domain"
)

// limitFields maps recognized limit keys to the count field they cap.
var limitFields = map[string]string{
	"maxModules": "modules",
	"maxLessons": "lessons",
	"maxAssets":  "assets",
}

// Normalize filters raw limit configuration down to recognized keys with
// positive integer values. Non-numeric or non-positive values are silently
// dropped rather than treated as errors.
func Normalize(raw map[string]any) map[string]int {
	out := make(map[string]int, len(raw))
	for key, val := range raw {
		if _, recognized := limitFields[key]; !recognized {
			continue
		}
		n, ok := toPositiveInt(val)
		if !ok {
			continue
		}
		out[key] = n
	}
	return out
}

func toPositiveInt(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case int64:
		if v > 0 {
			return int(v), true
		}
	case float64:
		n := int(v)
		if float64(n) == v && n > 0 {
			return n, true
		}
	case string:
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// Evaluate compares dataset counts against normalized limits and returns one
// message per breached field.
func Evaluate(counts map[string]int, normalized map[string]int) []string {
	keys := make([]string, 0, len(normalized))
	for key := range normalized {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []string
	for _, key := range keys {
		field := limitFields[key]
		n, have := counts[field]
		if !have {
			continue
		}
		if limit := normalized[key]; n > limit {
			errs = append(errs, fmt.Sprintf("%s count %d exceeds the limit %d", field, n, limit))
		}
	}
	return errs
}

// CountDataset tallies modules and assets across a dataset. Assets include
// module-level entries plus all lesson-nested entries.
func CountDataset(ds *domain.NormalizedDataset) map[string]int {
	counts := map[string]int{"modules": len(ds.Modules), "lessons": 0, "assets": 0}
	for i := range ds.Modules {
		counts["lessons"] += len(ds.Modules[i].Lessons)
		counts["assets"] += ds.Modules[i].AssetCount()
	}
	return counts
}
