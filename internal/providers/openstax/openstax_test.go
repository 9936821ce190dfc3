package openstax_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drmixer/elevated-importer/internal/providers/openstax"
)

const fixture = `{
  "generatedAt": "2026-08-01T12:00:00Z",
  "books": [
    {
      "slug": "algebra-1",
      "title": "Algebra 1",
      "subject": "math",
      "gradeBand": "9-12",
      "resources": [
        {"url": "https://openstax.org/books/algebra-1", "title": "Full text", "type": "textbook", "license": "CC BY 4.0"},
        {"title": "no url, skipped"}
      ],
      "chapters": [
        {
          "slug": "linear-equations",
          "title": "Linear Equations",
          "resources": [
            {"url": "https://openstax.org/books/algebra-1/ch2", "title": "Chapter 2"}
          ]
        },
        {
          "slug": "empty-chapter",
          "title": "No usable resources",
          "resources": [{"title": "missing url"}]
        }
      ]
    },
    {
      "title": "book without slug, skipped",
      "resources": [{"url": "https://example.org/orphan"}]
    },
    {
      "slug": "biology",
      "title": "Biology",
      "subject": "science",
      "resources": [{"url": "https://openstax.org/books/biology"}]
    }
  ]
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openstax.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	ds, err := openstax.Load(writeFixture(t, fixture), 0)
	require.NoError(t, err)

	require.Equal(t, "openstax", ds.ProviderID)
	require.Equal(t, "2026-08-01T12:00:00Z", ds.GeneratedAt.Format("2006-01-02T15:04:05Z"))
	require.Len(t, ds.Modules, 2, "book without slug must be skipped")

	algebra := ds.Modules[0]
	require.Equal(t, "algebra-1", algebra.ModuleSlug)
	require.Len(t, algebra.Assets, 1, "resource without url must be skipped")
	require.Equal(t, "textbook", algebra.Assets[0].Kind)
	require.Equal(t, "CC BY 4.0", algebra.Assets[0].License)
	require.Equal(t, "openstax", algebra.Assets[0].Metadata["provider"])

	require.Len(t, algebra.Lessons, 1, "chapter with zero assets must be dropped")
	require.Equal(t, "linear-equations", algebra.Lessons[0].Slug)
	require.Equal(t, openstax.DefaultKind, algebra.Lessons[0].Assets[0].Kind)
	require.Equal(t, openstax.DefaultLicense, algebra.Lessons[0].Assets[0].License)
	require.Equal(t, "linear-equations", algebra.Lessons[0].Assets[0].Metadata["chapter"])
}

func TestLoadLimitBoundsBooks(t *testing.T) {
	ds, err := openstax.Load(writeFixture(t, fixture), 1)
	require.NoError(t, err)

	// Limit applies to raw books before skip filtering, so only algebra-1 survives.
	require.Len(t, ds.Modules, 1)
	require.Equal(t, "algebra-1", ds.Modules[0].ModuleSlug)
}

func TestLoadBadJSON(t *testing.T) {
	_, err := openstax.Load(writeFixture(t, "{not json"), 0)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := openstax.Load(filepath.Join(t.TempDir(), "absent.json"), 0)
	require.Error(t, err)
}
