// Package pipeline orchestrates one import run: resolve identities, validate
// licensing, upsert assets, merge lesson attribution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drmixer/elevated-importer/internal/attribution"
	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/license"
	"github.com/drmixer/elevated-importer/internal/limits"
	"github.com/drmixer/elevated-importer/internal/logger"
	"github.com/drmixer/elevated-importer/internal/urlcheck"
)

// upsertBatchSize is the fixed number of asset rows written per statement.
// Batches run sequentially to bound memory and respect write-rate limits.
const upsertBatchSize = 100

// ContentStore is the content-store access the pipeline needs.
type ContentStore interface {
	GetModuleBySlug(ctx context.Context, slug string) (*domain.Module, error)
	GetLessonsByModuleID(ctx context.Context, moduleID string) ([]domain.Lesson, error)
	GetSourceByName(ctx context.Context, name string) (*domain.ContentSource, error)
	UpsertAssets(ctx context.Context, assets []domain.AssetUpsert) error
	UpdateLessonAttribution(ctx context.Context, lessonID, block string) error
}

// URLChecker probes asset reachability.
type URLChecker interface {
	CheckAll(ctx context.Context, urls []string) []urlcheck.Result
}

// Config tunes a Pipeline.
type Config struct {
	// ImporterID stamps upserted asset metadata so rows trace back to this
	// importer deployment.
	ImporterID string

	// Limits is the normalized safety-limit set (see the limits package).
	Limits map[string]int
}

// Result is what a completed run reports back to the queue.
type Result struct {
	Totals   domain.RunTotals
	Warnings []string
}

// Pipeline executes import runs against the content store.
type Pipeline struct {
	store   ContentStore
	checker URLChecker
	cfg     Config
	logger  logger.Logger
}

// New creates a Pipeline.
func New(store ContentStore, checker URLChecker, cfg Config, log logger.Logger) *Pipeline {
	if cfg.ImporterID == "" {
		cfg.ImporterID = "importer"
	}
	return &Pipeline{store: store, checker: checker, cfg: cfg, logger: log}
}

// lessonState tracks one resolved lesson's attribution through a run: the
// block as read, and the ordered segment set being merged locally. Flushed at
// the end only when the merged set differs from what was read, so unchanged
// lessons are never rewritten.
type lessonState struct {
	original string
	segments []string
}

// Execute performs one run for an already-claimed dataset. Any returned error
// is fatal for the run; transient URL failures surface as warnings instead.
func (p *Pipeline) Execute(ctx context.Context, run *domain.ImportRun, ds *domain.NormalizedDataset) (*Result, error) {
	if err := p.enforceLimits(ds); err != nil {
		return nil, err
	}

	modules, err := p.resolveModules(ctx, ds)
	if err != nil {
		return nil, err
	}

	source, segment, licenseURL, err := p.resolveSource(ctx, ds.ProviderID)
	if err != nil {
		return nil, err
	}

	lessonStates, lessonRefs, err := p.resolveLessons(ctx, ds, modules, segment)
	if err != nil {
		return nil, err
	}

	warnings := p.checkURLs(ctx, run.ID, ds)

	rows, totals := p.buildRows(ds, modules, lessonRefs, source, licenseURL)

	if err := p.upsertBatches(ctx, rows); err != nil {
		return nil, err
	}

	if err := p.flushAttribution(ctx, lessonStates); err != nil {
		return nil, err
	}

	p.logger.Info("run pipeline finished",
		logger.String("run_id", run.ID),
		logger.String("provider", ds.ProviderID),
		logger.Int("modules", totals.Modules),
		logger.Int("lessons", totals.Lessons),
		logger.Int("assets", totals.Assets))

	return &Result{Totals: totals, Warnings: warnings}, nil
}

func (p *Pipeline) enforceLimits(ds *domain.NormalizedDataset) error {
	if len(p.cfg.Limits) == 0 {
		return nil
	}
	counts := limits.CountDataset(ds)
	if breaches := limits.Evaluate(counts, p.cfg.Limits); len(breaches) > 0 {
		return domain.NewValidationError("dataset exceeds safety limits: %s", strings.Join(breaches, "; "))
	}
	return nil
}

// resolveModules maps every referenced module slug to its stored record. An
// unresolved slug fails the entire run rather than skipping the module.
func (p *Pipeline) resolveModules(ctx context.Context, ds *domain.NormalizedDataset) (map[string]*domain.Module, error) {
	modules := make(map[string]*domain.Module, len(ds.Modules))
	for i := range ds.Modules {
		slug := ds.Modules[i].ModuleSlug
		if _, done := modules[slug]; done {
			continue
		}
		module, err := p.store.GetModuleBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewResolutionError("module %q not found in content store", slug)
			}
			return nil, &domain.PersistenceError{Op: "resolve module " + slug, Err: err}
		}
		modules[slug] = module
	}
	return modules, nil
}

// resolveSource loads the pre-seeded content-source record, validates its
// license once, and composes the run-wide attribution segment.
func (p *Pipeline) resolveSource(ctx context.Context, providerID string) (*domain.ContentSource, string, string, error) {
	source, err := p.store.GetSourceByName(ctx, providerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", "", domain.NewConfigError("content source %q is not seeded", providerID)
		}
		return nil, "", "", &domain.PersistenceError{Op: "resolve source " + providerID, Err: err}
	}

	canonical, err := license.Resolve(source.License)
	if err != nil {
		return nil, "", "", err
	}

	licenseURL := ""
	if source.LicenseURL != nil {
		licenseURL = *source.LicenseURL
	}
	attributionText := ""
	if source.AttributionText != nil {
		attributionText = *source.AttributionText
	}

	segment := attribution.Compose(source.Name, canonical, licenseURL, attributionText)
	return source, segment, licenseURL, nil
}

// lessonRefKey identifies one dataset lesson within its module so row
// building can find the resolved lesson id.
func lessonRefKey(moduleSlug string, dl *domain.NormalizedLesson) string {
	if dl.Slug != "" {
		return moduleSlug + "\x00" + dl.Slug
	}
	return moduleSlug + "\x00" + dl.Title
}

// resolveLessons matches every dataset lesson against its module's stored
// lessons (by slug, then title) and seeds each lesson's local attribution
// state from the stored block, merging in the run's segment. The second map
// resolves (module, lesson) references to lesson ids.
func (p *Pipeline) resolveLessons(ctx context.Context, ds *domain.NormalizedDataset, modules map[string]*domain.Module, segment string) (map[string]*lessonState, map[string]string, error) {
	states := make(map[string]*lessonState)
	refs := make(map[string]string)

	for i := range ds.Modules {
		dm := &ds.Modules[i]
		if len(dm.Lessons) == 0 {
			continue
		}

		module := modules[dm.ModuleSlug]
		stored, err := p.store.GetLessonsByModuleID(ctx, module.ID)
		if err != nil {
			return nil, nil, &domain.PersistenceError{Op: "load lessons for module " + dm.ModuleSlug, Err: err}
		}

		bySlug := make(map[string]*domain.Lesson, len(stored))
		byTitle := make(map[string]*domain.Lesson, len(stored))
		for j := range stored {
			bySlug[stored[j].Slug] = &stored[j]
			byTitle[stored[j].Title] = &stored[j]
		}

		for j := range dm.Lessons {
			dl := &dm.Lessons[j]
			lesson := bySlug[dl.Slug]
			if lesson == nil && dl.Title != "" {
				lesson = byTitle[dl.Title]
			}
			if lesson == nil {
				name := dl.Slug
				if name == "" {
					name = dl.Title
				}
				return nil, nil, domain.NewResolutionError("lesson %q not found in module %q", name, dm.ModuleSlug)
			}

			state, ok := states[lesson.ID]
			if !ok {
				state = &lessonState{
					original: attribution.Build(attribution.Split(lesson.AttributionBlock)),
					segments: attribution.Split(lesson.AttributionBlock),
				}
				states[lesson.ID] = state
			}
			state.segments = append(state.segments, segment)
			refs[lessonRefKey(dm.ModuleSlug, dl)] = lesson.ID
		}
	}

	return states, refs, nil
}

// checkURLs probes every referenced asset URL. Failures are downgraded to
// warnings; the run keeps going.
func (p *Pipeline) checkURLs(ctx context.Context, runID string, ds *domain.NormalizedDataset) []string {
	var urls []string
	for i := range ds.Modules {
		for _, a := range ds.Modules[i].Assets {
			urls = append(urls, a.URL)
		}
		for _, l := range ds.Modules[i].Lessons {
			for _, a := range l.Assets {
				urls = append(urls, a.URL)
			}
		}
	}

	var warnings []string
	for _, res := range p.checker.CheckAll(ctx, urls) {
		if res.OK {
			continue
		}
		msg := fmt.Sprintf("url check failed for %s", res.URL)
		if res.Error != "" {
			msg += ": " + res.Error
		} else if res.Status != 0 {
			msg += fmt.Sprintf(": status %d", res.Status)
		}
		warnings = append(warnings, msg)
		p.logger.Warn("asset url unreachable",
			logger.String("run_id", runID),
			logger.String("url", res.URL),
			logger.Int("status", res.Status))
	}
	return warnings
}

// buildRows turns the dataset into upsert rows stamped with the importer id
// and timestamp, and tallies the run totals. Rows sharing an upsert key are
// collapsed before batching: a multi-row ON CONFLICT DO UPDATE statement must
// not touch the same (module_id, url) target twice.
func (p *Pipeline) buildRows(ds *domain.NormalizedDataset, modules map[string]*domain.Module, lessonRefs map[string]string, source *domain.ContentSource, licenseURL string) ([]domain.AssetUpsert, domain.RunTotals) {
	stamp := domain.ImportStamp{ImporterID: p.cfg.ImporterID, ImportedAt: time.Now().UTC()}

	var rows []domain.AssetUpsert
	totals := domain.RunTotals{Modules: len(ds.Modules)}

	for i := range ds.Modules {
		dm := &ds.Modules[i]
		module := modules[dm.ModuleSlug]

		for _, a := range dm.Assets {
			rows = append(rows, p.toRow(a, module.ID, nil, source, licenseURL, stamp))
		}

		for j := range dm.Lessons {
			dl := &dm.Lessons[j]
			totals.Lessons++

			var lessonID *string
			if id, ok := lessonRefs[lessonRefKey(dm.ModuleSlug, dl)]; ok {
				lessonID = &id
			}
			for _, a := range dl.Assets {
				rows = append(rows, p.toRow(a, module.ID, lessonID, source, licenseURL, stamp))
			}
		}
	}

	rows = dedupeRows(rows)
	totals.Assets = len(rows)
	return rows, totals
}

// dedupeRows collapses rows that share a (module, url) upsert key, keeping
// the last occurrence. That matches re-import semantics, where a later write
// to the same key overwrites the earlier one.
func dedupeRows(rows []domain.AssetUpsert) []domain.AssetUpsert {
	deduped := make([]domain.AssetUpsert, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		key := row.ModuleID + "\x00" + row.URL
		if i, ok := index[key]; ok {
			deduped[i] = row
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, row)
	}
	return deduped
}

func (p *Pipeline) toRow(a domain.NormalizedAsset, moduleID string, lessonID *string, source *domain.ContentSource, licenseURL string, stamp domain.ImportStamp) domain.AssetUpsert {
	metadata := make(map[string]any, len(a.Metadata)+2)
	for k, v := range a.Metadata {
		metadata[k] = v
	}
	metadata["importer_id"] = stamp.ImporterID
	metadata["imported_at"] = stamp.ImportedAt.Format(time.RFC3339)

	attributionText := ""
	if source.AttributionText != nil {
		attributionText = *source.AttributionText
	}

	return domain.AssetUpsert{
		ModuleID:        moduleID,
		LessonID:        lessonID,
		SourceID:        source.ID,
		URL:             a.URL,
		Title:           a.Title,
		Description:     a.Description,
		Kind:            a.Kind,
		License:         a.License,
		LicenseURL:      licenseURL,
		AttributionText: attributionText,
		Metadata:        metadata,
		Tags:            a.Tags,
	}
}

// upsertBatches writes rows in fixed-size sequential batches. A batch failure
// aborts the run; earlier batches stay applied, which is safe because the
// (module_id, url) upsert key makes re-running the same input idempotent.
func (p *Pipeline) upsertBatches(ctx context.Context, rows []domain.AssetUpsert) error {
	for start := 0; start < len(rows); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := p.store.UpsertAssets(ctx, rows[start:end]); err != nil {
			return &domain.PersistenceError{
				Op:  fmt.Sprintf("upsert assets batch %d", start/upsertBatchSize+1),
				Err: err,
			}
		}
	}
	return nil
}

// flushAttribution writes back merged blocks for lessons whose segment set
// changed. Compared by value, not by version token: concurrent runs touching
// the same lesson race and last write wins.
func (p *Pipeline) flushAttribution(ctx context.Context, states map[string]*lessonState) error {
	for id, state := range states {
		merged := attribution.Build(state.segments)
		if merged == state.original {
			continue
		}
		if err := p.store.UpdateLessonAttribution(ctx, id, merged); err != nil {
			return &domain.PersistenceError{Op: "write attribution for lesson " + id, Err: err}
		}
	}
	return nil
}
