// Package openstax normalizes OpenStax book exports. Books map to modules,
// chapters to lessons.
package openstax

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/drmixer/elevated-importer/internal/domain"
)

const (
	// DefaultKind is applied when a resource carries no type of its own.
	DefaultKind = "reading"

	// DefaultLicense is the OpenStax catalog-wide license fallback.
	DefaultLicense = "CC BY"
)

type rawFile struct {
	GeneratedAt string    `json:"generatedAt"`
	Books       []rawBook `json:"books"`
}

type rawBook struct {
	Slug      string        `json:"slug"`
	Title     string        `json:"title"`
	Subject   string        `json:"subject"`
	GradeBand string        `json:"gradeBand"`
	Resources []rawResource `json:"resources"`
	Chapters  []rawChapter  `json:"chapters"`
}

type rawChapter struct {
	Slug      string        `json:"slug"`
	Title     string        `json:"title"`
	Resources []rawResource `json:"resources"`
}

type rawResource struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	License     string   `json:"license"`
	Tags        []string `json:"tags"`
}

// Load reads an OpenStax export and translates it into the canonical dataset.
// limit, when positive, bounds the number of books processed. Books without a
// slug and resources without a URL are skipped.
func Load(path string, limit int) (*domain.NormalizedDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openstax input: %w", err)
	}

	var file rawFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse openstax input: %w", err)
	}

	books := file.Books
	if limit > 0 && limit < len(books) {
		books = books[:limit]
	}

	ds := &domain.NormalizedDataset{
		ProviderID:  "openstax",
		GeneratedAt: parseGeneratedAt(file.GeneratedAt),
	}

	for _, book := range books {
		slug := strings.TrimSpace(book.Slug)
		if slug == "" {
			continue
		}

		module := domain.NormalizedModule{
			ModuleSlug: slug,
			Title:      book.Title,
			GradeBand:  book.GradeBand,
			Subject:    book.Subject,
		}

		for _, res := range book.Resources {
			if asset, ok := toAsset(res, slug, ""); ok {
				module.Assets = append(module.Assets, asset)
			}
		}

		for _, chapter := range book.Chapters {
			lesson := domain.NormalizedLesson{Slug: chapter.Slug, Title: chapter.Title}
			for _, res := range chapter.Resources {
				if asset, ok := toAsset(res, slug, chapter.Slug); ok {
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

func toAsset(res rawResource, bookSlug, chapterSlug string) (domain.NormalizedAsset, bool) {
	url := strings.TrimSpace(res.URL)
	if url == "" {
		return domain.NormalizedAsset{}, false
	}

	kind := res.Type
	if kind == "" {
		kind = DefaultKind
	}
	lic := res.License
	if lic == "" {
		lic = DefaultLicense
	}

	metadata := map[string]any{
		"provider": "openstax",
		"book":     bookSlug,
	}
	if chapterSlug != "" {
		metadata["chapter"] = chapterSlug
	}

	return domain.NormalizedAsset{
		URL:         url,
		Title:       res.Title,
		Description: res.Description,
		Kind:        kind,
		License:     lic,
		Tags:        res.Tags,
		Metadata:    metadata,
	}, true
}

func parseGeneratedAt(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
