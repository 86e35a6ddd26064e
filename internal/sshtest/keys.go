package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

// Key is a generated client key pair.
type Key struct {
	Signer ssh.Signer
	PEM    []byte // OpenSSH private key, encrypted when generated with a passphrase
}

// PublicKey returns the public half.
func (k *Key) PublicKey() ssh.PublicKey {
	return k.Signer.PublicKey()
}

// GenerateKey creates an unencrypted ed25519 key.
func GenerateKey(t testing.TB) *Key {
	t.Helper()
	return generate(t, "")
}

// GenerateEncryptedKey creates an ed25519 key whose PEM form is protected
// by passphrase.
func GenerateEncryptedKey(t testing.TB, passphrase string) *Key {
	t.Helper()
	return generate(t, passphrase)
}

func generate(t testing.TB, passphrase string) *Key {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer from key: %v", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "sshtest")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "sshtest", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}

	return &Key{Signer: signer, PEM: pem.EncodeToMemory(block)}
}

// WriteKey stores the key's PEM under dir and returns the file path.
func WriteKey(t testing.TB, dir string, key *Key) string {
	t.Helper()

	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, key.PEM, 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}
