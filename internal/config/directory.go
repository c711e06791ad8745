// Package config defines the collaborators spec.md §1 calls out of
// scope — UserDirectory, SelectorCatalog, VolumeCatalog — and a YAML
// file loader for each, grounded on the YAML-manifest walking style of
// the teacher's api/internal/sync/parser.go and on the original
// YamlConfigManager in original_source/whistler/config.py. The core
// (Gateway, SessionCoordinator) only ever depends on the three
// interfaces below; the TUI chrome that lets users edit these files is
// out of scope entirely.
package config

import (
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/marma/whistler/internal/logger"
	"github.com/marma/whistler/internal/model"
)

// UserDirectory resolves usernames to their registered SSH public keys.
type UserDirectory interface {
	User(name model.Owner) (model.User, bool)
}

// userFile is the on-disk shape of /etc/whistler/users.yaml.
type userFile struct {
	Users []struct {
		Name       string   `yaml:"name"`
		PublicKeys []string `yaml:"publicKeys"`
	} `yaml:"users"`
}

// YAMLUserDirectory loads users.yaml once at startup; the gateway does
// not watch it for changes, matching spec.md's framing of it as a
// supplied read-only collaborator.
type YAMLUserDirectory struct {
	users map[model.Owner]model.User
}

// LoadUserDirectory reads and parses a users.yaml file. Malformed public
// keys are skipped with a warning rather than failing the whole load,
// since one bad entry for one user should not lock everyone out.
func LoadUserDirectory(path string) (*YAMLUserDirectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading user directory %s: %w", path, err)
	}

	var doc userFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing user directory %s: %w", path, err)
	}

	dir := &YAMLUserDirectory{users: make(map[model.Owner]model.User, len(doc.Users))}
	for _, u := range doc.Users {
		user := model.User{Name: model.Owner(u.Name)}
		for _, line := range u.PublicKeys {
			pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
			if err != nil {
				logger.Log.Warn().Err(err).Str("user", u.Name).Msg("skipping malformed public key")
				continue
			}
			user.PublicKeys = append(user.PublicKeys, pub.Marshal())
		}
		dir.users[user.Name] = user
	}
	return dir, nil
}

// User implements UserDirectory.
func (d *YAMLUserDirectory) User(name model.Owner) (model.User, bool) {
	u, ok := d.users[name]
	return u, ok
}
