package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marma/whistler/internal/model"
)

const testUsersYAML = `
users:
  - name: alice
    publicKeys:
      - "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIJlVa/i0nJ1eYK73Wf4F8jX3j+8+1VoBcGBvu9ex3Xz1 alice@laptop"
      - "not a valid key"
  - name: bob
    publicKeys: []
`

func TestLoadUserDirectoryParsesKeysAndSkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testUsersYAML), 0o600))

	dir, err := LoadUserDirectory(path)
	require.NoError(t, err)

	alice, ok := dir.User("alice")
	require.True(t, ok)
	assert.Len(t, alice.PublicKeys, 1, "the malformed key should be skipped, not fail the whole load")

	bob, ok := dir.User("bob")
	require.True(t, ok)
	assert.Empty(t, bob.PublicKeys)

	_, ok = dir.User(model.Owner("carol"))
	assert.False(t, ok)
}

func TestLoadUserDirectoryMissingFile(t *testing.T) {
	_, err := LoadUserDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
