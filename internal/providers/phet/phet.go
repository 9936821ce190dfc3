// Package phet normalizes PhET simulation catalogs. Simulations are flat
// records grouped into modules by topic slug; there is no lesson nesting.
package phet

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/drmixer/elevated-importer/internal/domain"
)

const (
	DefaultKind    = "simulation"
	DefaultLicense = "CC BY"
)

type rawFile struct {
	GeneratedAt string          `json:"generatedAt"`
	Simulations []rawSimulation `json:"simulations"`
}

type rawSimulation struct {
	TopicSlug   string   `json:"topicSlug"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Subjects    []string `json:"subjects"`
	GradeLevels []string `json:"gradeLevels"`
	License     string   `json:"license"`
}

// Load reads a PhET catalog and translates it into the canonical dataset.
// limit, when positive, bounds the number of simulation records processed
// before grouping. Module order follows first appearance of each topic slug.
func Load(path string, limit int) (*domain.NormalizedDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phet input: %w", err)
	}

	var file rawFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse phet input: %w", err)
	}

	sims := file.Simulations
	if limit > 0 && limit < len(sims) {
		sims = sims[:limit]
	}

	ds := &domain.NormalizedDataset{
		ProviderID:  "phet",
		GeneratedAt: parseGeneratedAt(file.GeneratedAt),
	}

	bySlug := make(map[string]int)
	for _, sim := range sims {
		slug := strings.TrimSpace(sim.TopicSlug)
		url := strings.TrimSpace(sim.URL)
		if slug == "" || url == "" {
			continue
		}

		idx, ok := bySlug[slug]
		if !ok {
			ds.Modules = append(ds.Modules, domain.NormalizedModule{
				ModuleSlug: slug,
				Subject:    firstOrEmpty(sim.Subjects),
			})
			idx = len(ds.Modules) - 1
			bySlug[slug] = idx
		}

		lic := sim.License
		if lic == "" {
			lic = DefaultLicense
		}

		ds.Modules[idx].Assets = append(ds.Modules[idx].Assets, domain.NormalizedAsset{
			URL:         url,
			Title:       sim.Name,
			Description: sim.Description,
			Kind:        DefaultKind,
			License:     lic,
			Tags:        append(append([]string{}, sim.Subjects...), sim.GradeLevels...),
			Metadata: map[string]any{
				"provider": "phet",
				"topic":    slug,
			},
		})
	}

	return ds, nil
}

func firstOrEmpty(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func parseGeneratedAt(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
