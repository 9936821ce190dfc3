package domain

import "time"

// Module is the content-store module record this pipeline resolves slugs
// against. Read-only from the importer's side.
type Module struct {
	ID    string `db:"id"    json:"id"`
	Slug  string `db:"slug"  json:"slug"`
	Title string `db:"title" json:"title"`
}

// Lesson is a content-store lesson. The importer only reads lessons for
// resolution and writes back the merged attribution block.
type Lesson struct {
	ID               string `db:"id"                json:"id"`
	ModuleID         string `db:"module_id"         json:"module_id"`
	Slug             string `db:"slug"              json:"slug"`
	Title            string `db:"title"             json:"title"`
	AttributionBlock string `db:"attribution_block" json:"attribution_block"`
}

// ContentSource is the pre-seeded record describing one external provider's
// licensing identity. A missing source is a fatal configuration error.
type ContentSource struct {
	ID              string  `db:"id"               json:"id"`
	Name            string  `db:"name"             json:"name"`
	License         string  `db:"license"          json:"license"`
	LicenseURL      *string `db:"license_url"      json:"license_url,omitempty"`
	AttributionText *string `db:"attribution_text" json:"attribution_text,omitempty"`
}

// AssetUpsert is one persisted asset row. (ModuleID, URL) is the upsert key:
// re-importing the same dataset updates rows instead of duplicating them.
type AssetUpsert struct {
	ModuleID        string         `db:"module_id"        json:"module_id"`
	LessonID        *string        `db:"lesson_id"        json:"lesson_id,omitempty"`
	SourceID        string         `db:"source_id"        json:"source_id"`
	URL             string         `db:"url"              json:"url"`
	Title           string         `db:"title"            json:"title"`
	Description     string         `db:"description"      json:"description"`
	Kind            string         `db:"kind"             json:"kind"`
	License         string         `db:"license"          json:"license"`
	LicenseURL      string         `db:"license_url"      json:"license_url"`
	AttributionText string         `db:"attribution_text" json:"attribution_text"`
	Metadata        map[string]any `db:"-"               json:"metadata,omitempty"`
	Tags            []string       `db:"-"               json:"tags,omitempty"`
}

// ImportStamp is embedded into each upserted asset's metadata so rows can be
// traced back to the run that wrote them.
type ImportStamp struct {
	ImporterID string    `json:"importer_id"`
	ImportedAt time.Time `json:"imported_at"`
}
