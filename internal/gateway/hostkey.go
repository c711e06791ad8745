package gateway

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// loadOrGenerateHostKey loads the RSA host key persisted at path,
// generating and persisting a fresh 2048-bit key on first start if
// absent, per spec.md §6 ("Host key persisted at ssh_host_key (RSA
// 2048, generated on first start if absent)"). Grounded on the RSA
// key-generation/PEM-encoding pattern used throughout the pack's test
// helpers (e.g. gravitational-teleport/api/utils/sshutils/conn_test.go).
func loadOrGenerateHostKey(path string) (ssh.Signer, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return ssh.ParsePrivateKey(raw)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading host key %s: %w", path, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating host key: %w", err)
	}

	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("persisting host key %s: %w", path, err)
	}

	return ssh.NewSignerFromKey(key)
}
