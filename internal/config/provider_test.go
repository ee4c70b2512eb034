// AngelaMos | 2026
// provider_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, threshold string) {
	t.Helper()
	content := `
database:
  url: postgres://localhost/purfacted_test
redis:
  url: redis://localhost:6379
trust:
  blocklist_salt: test-salt
moderation:
  veto_resolve_threshold: ` + threshold + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestProviderReloadSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "10.0")

	c, err := load(path)
	require.NoError(t, err)

	p := NewProvider(c)
	assert.InDelta(t, 10.0, p.Moderation().VetoResolveThreshold, 0.001)

	// Rewrite the file and reload; services reading through the Provider
	// see the new threshold on their next call.
	writeConfigFile(t, path, "42.0")
	reloaded, err := p.Reload(path)
	require.NoError(t, err)

	assert.InDelta(t, 42.0, reloaded.Moderation.VetoResolveThreshold, 0.001)
	assert.InDelta(t, 42.0, p.Moderation().VetoResolveThreshold, 0.001)
}

func TestProviderReloadKeepsSnapshotOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "10.0")

	c, err := load(path)
	require.NoError(t, err)

	p := NewProvider(c)
	_, err = p.Reload(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	// A failed reload never clobbers the live snapshot.
	assert.InDelta(t, 10.0, p.Moderation().VetoResolveThreshold, 0.001)
}

func TestProviderOverride(t *testing.T) {
	p := NewProvider(Defaults())

	next := Defaults()
	next.Moderation.MaxModerators = 7
	p.Override(next)

	assert.Equal(t, 7, p.Moderation().MaxModerators)
}
