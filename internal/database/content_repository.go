package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/drmixer/elevated-importer/internal/domain"
)

// assetColumnCount is the number of bound parameters per upserted asset row.
const assetColumnCount = 12

// ContentRepository reads the content-store records the pipeline resolves
// against and writes assets and lesson attribution blocks.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// GetModuleBySlug resolves one module slug. Returns domain.ErrNotFound when
// the slug does not exist.
func (r *ContentRepository) GetModuleBySlug(ctx context.Context, slug string) (*domain.Module, error) {
	var module domain.Module
	query := `SELECT id, slug, title FROM modules WHERE slug = $1`
	if err := r.db.GetContext(ctx, &module, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get module by slug: %w", err)
	}
	return &module, nil
}

// GetLessonsByModuleID returns all lessons under a module.
func (r *ContentRepository) GetLessonsByModuleID(ctx context.Context, moduleID string) ([]domain.Lesson, error) {
	var lessons []domain.Lesson
	query := `
		SELECT id, module_id, slug, title, COALESCE(attribution_block, '') AS attribution_block
		FROM lessons
		WHERE module_id = $1
		ORDER BY slug ASC`
	if err := r.db.SelectContext(ctx, &lessons, query, moduleID); err != nil {
		return nil, fmt.Errorf("get lessons by module: %w", err)
	}
	return lessons, nil
}

// GetSourceByName resolves a pre-seeded content-source record. Returns
// domain.ErrNotFound when no record exists for the name.
func (r *ContentRepository) GetSourceByName(ctx context.Context, name string) (*domain.ContentSource, error) {
	var source domain.ContentSource
	query := `SELECT id, name, license, license_url, attribution_text FROM content_sources WHERE name = $1`
	if err := r.db.GetContext(ctx, &source, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get source by name: %w", err)
	}
	return &source, nil
}

// UpsertAssets writes one batch of asset rows, keyed on (module_id, url):
// re-importing the same dataset updates rows in place instead of duplicating
// them.
func (r *ContentRepository) UpsertAssets(ctx context.Context, assets []domain.AssetUpsert) error {
	if len(assets) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(assets))
	args := make([]any, 0, len(assets)*assetColumnCount)
	for i, asset := range assets {
		metadata, err := json.Marshal(asset.Metadata)
		if err != nil {
			return fmt.Errorf("encode asset metadata: %w", err)
		}

		base := i * assetColumnCount
		marks := make([]string, assetColumnCount)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			asset.ModuleID, asset.LessonID, asset.SourceID, asset.URL,
			asset.Title, asset.Description, asset.Kind, asset.License,
			asset.LicenseURL, asset.AttributionText, metadata, pq.Array(asset.Tags),
		)
	}

	query := `
		INSERT INTO assets (module_id, lesson_id, source_id, url, title, description,
			kind, license, license_url, attribution_text, metadata, tags)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (module_id, url) DO UPDATE SET
			lesson_id = EXCLUDED.lesson_id,
			source_id = EXCLUDED.source_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			kind = EXCLUDED.kind,
			license = EXCLUDED.license,
			license_url = EXCLUDED.license_url,
			attribution_text = EXCLUDED.attribution_text,
			metadata = EXCLUDED.metadata,
			tags = EXCLUDED.tags`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert assets: %w", err)
	}
	return nil
}

// UpdateLessonAttribution writes back a lesson's merged attribution block.
func (r *ContentRepository) UpdateLessonAttribution(ctx context.Context, lessonID, block string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lessons SET attribution_block = $2 WHERE id = $1`, lessonID, block)
	if err != nil {
		return fmt.Errorf("update lesson attribution: %w", err)
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
