package providers_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/providers"
)

func TestForProvider(t *testing.T) {
	for _, id := range providers.RawIDs() {
		n, err := providers.ForProvider(id)
		require.NoError(t, err, "provider %q", id)
		require.Equal(t, id, n.ProviderID())
	}
}

func TestForProviderCuratedOnly(t *testing.T) {
	_, err := providers.ForProvider("khanacademy")
	require.Error(t, err)

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, err.Error(), "curated-mapping only")
}

func TestForProviderUnknown(t *testing.T) {
	_, err := providers.ForProvider("nope")
	require.Error(t, err)

	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.Contains(t, err.Error(), "unknown provider")
}

func TestIsKnown(t *testing.T) {
	require.True(t, providers.IsKnown("openstax"))
	require.True(t, providers.IsKnown("khanacademy"))
	require.False(t, providers.IsKnown("nope"))
}

func TestRawIDs(t *testing.T) {
	require.Equal(t, []string{"ck12", "oercommons", "openstax", "phet"}, providers.RawIDs())
}

func TestLoadResultShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"generatedAt": "2026-08-03T00:00:00Z",
		"simulations": [
			{"topicSlug": "waves", "name": "Wave on a String", "url": "https://phet.colorado.edu/sims/waves"}
		]
	}`), 0o600))

	n, err := providers.ForProvider("phet")
	require.NoError(t, err)

	result, err := n.Load(path, providers.LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "phet", result.Provider)
	require.Equal(t, providers.FormatDataset, result.Format)
	require.Len(t, result.Dataset.Modules, 1)
}
