package domain

import "time"

// NormalizedDataset is the canonical modules -> lessons -> assets shape all
// provider normalizers translate into. Ephemeral; never persisted verbatim.
type NormalizedDataset struct {
	ProviderID  string             `json:"provider_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Modules     []NormalizedModule `json:"modules"`
}

// NormalizedModule groups assets and lessons under one content-store module.
// ModuleSlug must resolve to an existing module; an unresolved slug fails the
// whole run.
type NormalizedModule struct {
	ModuleSlug string             `json:"module_slug"`
	Title      string             `json:"title,omitempty"`
	GradeBand  string             `json:"grade_band,omitempty"`
	Subject    string             `json:"subject,omitempty"`
	Strand     string             `json:"strand,omitempty"`
	Topic      string             `json:"topic,omitempty"`
	Assets     []NormalizedAsset  `json:"assets"`
	Lessons    []NormalizedLesson `json:"lessons,omitempty"`
}

// NormalizedLesson carries lesson-scoped assets. Slug and Title are both
// matching keys against the module's stored lessons. Normalizers drop lessons
// that end with zero assets.
type NormalizedLesson struct {
	Slug   string            `json:"slug,omitempty"`
	Title  string            `json:"title,omitempty"`
	Assets []NormalizedAsset `json:"assets"`
}

// NormalizedAsset is one canonical resource link. URL is required; entries
// without one are skipped during normalization.
type NormalizedAsset struct {
	URL         string         `json:"url"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Kind        string         `json:"kind,omitempty"`
	License     string         `json:"license,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AssetCount returns module-level assets plus all lesson-nested assets.
func (m *NormalizedModule) AssetCount() int {
	n := len(m.Assets)
	for i := range m.Lessons {
		n += len(m.Lessons[i].Assets)
	}
	return n
}
