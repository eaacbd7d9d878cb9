package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_INT_BAD="abc" is not a valid integer`, err.Error())
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	require.Error(t, err)
	assert.Equal(t, `TEST_BOOL_BAD="maybe" is not a valid boolean`, err.Error())
}

func TestEnvFloatInvalid(t *testing.T) {
	t.Setenv("TEST_FLOAT_BAD", "fast")
	_, err := envFloat("TEST_FLOAT_BAD", 1)
	require.Error(t, err)
	assert.Equal(t, `TEST_FLOAT_BAD="fast" is not a valid number`, err.Error())
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, v)
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite://netops.db", cfg.DatabaseURL)
	assert.Equal(t, 12, cfg.AssistantMaxReferences)
	assert.Equal(t, "fr", cfg.AssistantLanguage)
	assert.False(t, cfg.StrictTransitions)
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("NETOPS_PORT", "abc")
	t.Setenv("NETOPS_STRICT_TRANSITIONS", "sometimes")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NETOPS_PORT")
	assert.Contains(t, err.Error(), "abc")
	assert.Contains(t, err.Error(), "NETOPS_STRICT_TRANSITIONS")
}

func TestLoadRejectsUnknownLanguage(t *testing.T) {
	t.Setenv("NETOPS_ASSISTANT_LANGUAGE", "de")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NETOPS_ASSISTANT_LANGUAGE")
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.True(t, c.Allows("5G – Power Optimization", "TX_POWER"))
	assert.True(t, c.Allows("5G – Beam Configuration", "BEAM_COUNT"))
	assert.False(t, c.Allows("5G – Power Optimization", "BEAM_WIDTH"))
	assert.False(t, c.Allows("4G – Unknown", "TX_POWER"))
	assert.True(t, c.HasZone("Dense"))
	assert.False(t, c.HasZone("Urban"))

	m := c.FeatureMap()
	assert.Equal(t, []string{"TX_POWER", "POWER_OFFSET"}, m["5G – Power Optimization"])
}

func TestParseCatalogErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "no features", doc: "zones: [Dense]", wantErr: "no features"},
		{name: "no zones", doc: "features:\n  - name: A\n    parameters: [P]", wantErr: "no zones"},
		{name: "no parameters", doc: "features:\n  - name: A\nzones: [Dense]", wantErr: "no parameters"},
		{name: "duplicate", doc: "features:\n  - name: A\n    parameters: [P]\n  - name: A\n    parameters: [Q]\nzones: [Dense]", wantErr: "declared twice"},
		{name: "bad yaml", doc: "features: [", wantErr: "parse catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCatalog([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %v", err)
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "features:\n  - name: LTE – Handover\n    parameters: [HO_MARGIN]\nzones: [Urban]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.True(t, c.Allows("LTE – Handover", "HO_MARGIN"))
	assert.True(t, c.HasZone("Urban"))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
