// Package ck12 normalizes CK-12 FlexBook exports. FlexBooks map to modules,
// their lessons map straight to lessons.
package ck12

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/drmixer/elevated-importer/internal/domain"
)

const (
	DefaultKind    = "interactive"
	DefaultLicense = "CC BY-NC"
)

type rawFile struct {
	GeneratedAt string        `json:"generatedAt"`
	FlexBooks   []rawFlexBook `json:"flexbooks"`
}

type rawFlexBook struct {
	ModuleSlug string        `json:"moduleSlug"`
	Title      string        `json:"title"`
	Subject    string        `json:"subject"`
	Strand     string        `json:"strand"`
	Overview   []rawResource `json:"overviewResources"`
	Lessons    []rawLesson   `json:"lessons"`
}

type rawLesson struct {
	Slug      string        `json:"slug"`
	Name      string        `json:"name"`
	Resources []rawResource `json:"resources"`
}

type rawResource struct {
	Link        string   `json:"link"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary"`
	ContentType string   `json:"contentType"`
	License     string   `json:"license"`
	Concepts    []string `json:"concepts"`
}

// Load reads a CK-12 export and translates it into the canonical dataset.
// limit, when positive, bounds the number of flexbooks processed.
func Load(path string, limit int) (*domain.NormalizedDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ck12 input: %w", err)
	}

	var file rawFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse ck12 input: %w", err)
	}

	books := file.FlexBooks
	if limit > 0 && limit < len(books) {
		books = books[:limit]
	}

	ds := &domain.NormalizedDataset{
		ProviderID:  "ck12",
		GeneratedAt: parseGeneratedAt(file.GeneratedAt),
	}

	for _, book := range books {
		slug := strings.TrimSpace(book.ModuleSlug)
		if slug == "" {
			continue
		}

		module := domain.NormalizedModule{
			ModuleSlug: slug,
			Title:      book.Title,
			Subject:    book.Subject,
			Strand:     book.Strand,
		}

		for _, res := range book.Overview {
			if asset, ok := toAsset(res, slug); ok {
				module.Assets = append(module.Assets, asset)
			}
		}

		for _, rl := range book.Lessons {
			lesson := domain.NormalizedLesson{Slug: rl.Slug, Title: rl.Name}
			for _, res := range rl.Resources {
				if asset, ok := toAsset(res, slug); ok {
					lesson.Assets = append(lesson.Assets, asset)
				}
			}
			if len(lesson.Assets) == 0 {
				continue
			}
			module.Lessons = append(module.Lessons, lesson)
		}

		ds.Modules = append(ds.Modules, module)
	}

	return ds, nil
}

func toAsset(res rawResource, moduleSlug string) (domain.NormalizedAsset, bool) {
	url := strings.TrimSpace(res.Link)
	if url == "" {
		return domain.NormalizedAsset{}, false
	}

	kind := res.ContentType
	if kind == "" {
		kind = DefaultKind
	}
	lic := res.License
	if lic == "" {
		lic = DefaultLicense
	}

	return domain.NormalizedAsset{
		URL:         url,
		Title:       res.Name,
		Description: res.Summary,
		Kind:        kind,
		License:     lic,
		Tags:        res.Concepts,
		Metadata: map[string]any{
			"provider": "ck12",
			"flexbook": moduleSlug,
		},
	}, true
}

func parseGeneratedAt(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
