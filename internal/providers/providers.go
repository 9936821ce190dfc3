// Package providers maps provider ids to the normalizers that translate raw
// provider exports into the canonical dataset shape.
package providers

import (
	"sort"

	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/providers/ck12"
	"github.com/drmixer/elevated-importer/internal/providers/oercommons"
	"github.com/drmixer/elevated-importer/internal/providers/openstax"
	"github.com/drmixer/elevated-importer/internal/providers/phet"
)

// Format describes how a provider's content reaches the platform.
type Format string

const (
	// FormatDataset is the raw-ingestion path: a provider export file is
	// normalized into modules, lessons and assets.
	FormatDataset Format = "dataset"

	// FormatMapping providers are fed via curated mapping files and have no
	// raw-normalizer path.
	FormatMapping Format = "mapping"
)

// LoadOptions tunes a normalizer run. Limit, when positive, bounds the number
// of top-level raw groups processed before translation; it is not a cap on
// the resulting asset count.
type LoadOptions struct {
	Limit int
}

// LoadResult is the outcome of normalizing one raw provider file.
type LoadResult struct {
	Provider string
	Format   Format
	Dataset  *domain.NormalizedDataset
}

// Normalizer translates one provider's raw export into the canonical dataset.
type Normalizer interface {
	ProviderID() string
	Load(path string, opts LoadOptions) (*LoadResult, error)
}

type loadFunc func(path string, limit int) (*domain.NormalizedDataset, error)

type normalizer struct {
	id   string
	load loadFunc
}

func (n *normalizer) ProviderID() string { return n.id }

func (n *normalizer) Load(path string, opts LoadOptions) (*LoadResult, error) {
	ds, err := n.load(path, opts.Limit)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Provider: n.id, Format: FormatDataset, Dataset: ds}, nil
}

// raw is the closed set of raw-ingestion normalizers.
var raw = map[string]*normalizer{
	"openstax":   {id: "openstax", load: openstax.Load},
	"ck12":       {id: "ck12", load: ck12.Load},
	"phet":       {id: "phet", load: phet.Load},
	"oercommons": {id: "oercommons", load: oercommons.Load},
}

// curatedOnly providers exist in the platform but are imported via curated
// mapping files, not through this interface.
var curatedOnly = map[string]struct{}{
	"khanacademy": {},
	"youtube-edu": {},
}

// ForProvider resolves a provider id to its raw normalizer. Curated-only
// providers and unknown ids return distinct configuration errors so callers
// can report precisely.
func ForProvider(id string) (Normalizer, error) {
	if n, ok := raw[id]; ok {
		return n, nil
	}
	if _, ok := curatedOnly[id]; ok {
		return nil, domain.NewConfigError("provider %q is curated-mapping only and has no raw normalizer", id)
	}
	return nil, domain.NewConfigError("unknown provider %q", id)
}

// IsKnown reports whether id names any provider the platform recognizes,
// raw or curated.
func IsKnown(id string) bool {
	if _, ok := raw[id]; ok {
		return true
	}
	_, ok := curatedOnly[id]
	return ok
}

// RawIDs lists the provider ids with a raw-ingestion normalizer, sorted.
func RawIDs() []string {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
