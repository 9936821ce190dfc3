// Package oercommons normalizes OER Commons resource exports: a flat record
// list where each entry names its module, and optionally a lesson, by slug.
package oercommons

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/drmixer/elevated-importer/internal/domain"
)

const (
	DefaultKind    = "reading"
	DefaultLicense = "CC BY"
)

type rawFile struct {
	GeneratedAt string        `json:"generatedAt"`
	Resources   []rawResource `json:"resources"`
}

type rawResource struct {
	ModuleSlug   string   `json:"moduleSlug"`
	LessonSlug   string   `json:"lessonSlug"`
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Abstract     string   `json:"abstract"`
	MaterialType string   `json:"material_type"`
	License      string   `json:"license"`
	Subject      string   `json:"subject"`
	Keywords     []string `json:"keywords"`
}

// Load reads an OER Commons export and translates it into the canonical
// dataset. limit, when positive, bounds the number of records processed.
// Records missing a module slug or URL are skipped; lessons that collect zero
// assets are dropped.
func Load(path string, limit int) (*domain.NormalizedDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oercommons input: %w", err)
	}

	var file rawFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse oercommons input: %w", err)
	}

	records := file.Resources
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	ds := &domain.NormalizedDataset{
		ProviderID:  "oercommons",
		GeneratedAt: parseGeneratedAt(file.GeneratedAt),
	}

	moduleIdx := make(map[string]int)
	lessonIdx := make(map[string]map[string]int)

	for _, rec := range records {
		slug := strings.TrimSpace(rec.ModuleSlug)
		url := strings.TrimSpace(rec.URL)
		if slug == "" || url == "" {
			continue
		}

		mi, ok := moduleIdx[slug]
		if !ok {
			ds.Modules = append(ds.Modules, domain.NormalizedModule{
				ModuleSlug: slug,
				Subject:    rec.Subject,
			})
			mi = len(ds.Modules) - 1
			moduleIdx[slug] = mi
			lessonIdx[slug] = make(map[string]int)
		}

		asset := toAsset(rec)

		lessonSlug := strings.TrimSpace(rec.LessonSlug)
		if lessonSlug == "" {
			ds.Modules[mi].Assets = append(ds.Modules[mi].Assets, asset)
			continue
		}

		li, ok := lessonIdx[slug][lessonSlug]
		if !ok {
			ds.Modules[mi].Lessons = append(ds.Modules[mi].Lessons, domain.NormalizedLesson{Slug: lessonSlug})
			li = len(ds.Modules[mi].Lessons) - 1
			lessonIdx[slug][lessonSlug] = li
		}
		ds.Modules[mi].Lessons[li].Assets = append(ds.Modules[mi].Lessons[li].Assets, asset)
	}

	return ds, nil
}

func toAsset(rec rawResource) domain.NormalizedAsset {
	kind := rec.MaterialType
	if kind == "" {
		kind = DefaultKind
	}
	lic := rec.License
	if lic == "" {
		lic = DefaultLicense
	}

	return domain.NormalizedAsset{
		URL:         strings.TrimSpace(rec.URL),
		Title:       rec.Title,
		Description: rec.Abstract,
		Kind:        kind,
		License:     lic,
		Tags:        rec.Keywords,
		Metadata: map[string]any{
			"provider":      "oercommons",
			"material_type": rec.MaterialType,
		},
	}
}

func parseGeneratedAt(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
