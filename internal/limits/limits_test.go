package limits_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/limits"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want map[string]int
	}{
		{
			name: "numeric string accepted, negative dropped",
			raw:  map[string]any{"maxAssets": "25", "maxModules": -4},
			want: map[string]int{"maxAssets": 25},
		},
		{
			name: "unrecognized keys dropped",
			raw:  map[string]any{"maxAssets": 10, "maxWidgets": 5},
			want: map[string]int{"maxAssets": 10},
		},
		{
			name: "json float accepted when integral",
			raw:  map[string]any{"maxModules": float64(7), "maxLessons": 2.5},
			want: map[string]int{"maxModules": 7},
		},
		{
			name: "zero and garbage dropped",
			raw:  map[string]any{"maxAssets": 0, "maxModules": "lots"},
			want: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, limits.Normalize(tt.raw))
		})
	}
}

func TestEvaluate(t *testing.T) {
	counts := map[string]int{"modules": 3, "assets": 12}
	normalized := map[string]int{"maxModules": 2, "maxAssets": 10}

	errs := limits.Evaluate(counts, normalized)
	assert.Len(t, errs, 2)
	for _, msg := range errs {
		assert.True(t, strings.Contains(msg, "exceeds the limit"), "message %q", msg)
	}
	assert.Contains(t, errs, "assets count 12 exceeds the limit 10")
	assert.Contains(t, errs, "modules count 3 exceeds the limit 2")
}

func TestEvaluateWithinLimits(t *testing.T) {
	errs := limits.Evaluate(
		map[string]int{"modules": 2, "assets": 10},
		map[string]int{"maxModules": 2, "maxAssets": 10},
	)
	assert.Empty(t, errs)
}

func TestCountDataset(t *testing.T) {
	ds := &domain.NormalizedDataset{
		Modules: []domain.NormalizedModule{
			{
				ModuleSlug: "algebra-1",
				Assets:     []domain.NormalizedAsset{{URL: "a"}, {URL: "b"}},
				Lessons: []domain.NormalizedLesson{
					{Slug: "intro", Assets: []domain.NormalizedAsset{{URL: "c"}}},
				},
			},
			{
				ModuleSlug: "geometry",
				Assets:     []domain.NormalizedAsset{{URL: "d"}},
				Lessons: []domain.NormalizedLesson{
					{Slug: "angles", Assets: []domain.NormalizedAsset{{URL: "e"}, {URL: "f"}}},
				},
			},
		},
	}

	counts := limits.CountDataset(ds)
	assert.Equal(t, 2, counts["modules"])
	assert.Equal(t, 5, counts["assets"])
}
