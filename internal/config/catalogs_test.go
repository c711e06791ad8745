package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSelectorCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
selectors:
  - name: gpu
    key: node.kubernetes.io/gpu
    values: ["t4", "a100"]
`), 0o600))

	cat, err := LoadSelectorCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Selectors(), 1)
	assert.Equal(t, "gpu", cat.Selectors()[0].Name)
	assert.Equal(t, []string{"t4", "a100"}, cat.Selectors()[0].Values)
}

func TestLoadVolumeCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
volumes:
  - name: scratch
    mountPath: /scratch
`), 0o600))

	cat, err := LoadVolumeCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Volumes(), 1)
	assert.Equal(t, "/scratch", cat.Volumes()[0].MountPath)
}

func TestLoadVolumeCatalogMissingFile(t *testing.T) {
	_, err := LoadVolumeCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
