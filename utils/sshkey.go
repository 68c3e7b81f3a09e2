package utils

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// GenerateSSHKeyPair returns an OpenSSH private key and its authorized_keys
// line. keyType is "rsa" (bits applies) or "ed25519".
func GenerateSSHKeyPair(keyType string, bits int, comment string) (string, string, error) {
	var (
		private any
		public  any
	)

	switch strings.ToLower(keyType) {
	case "rsa":
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return "", "", fmt.Errorf("generate rsa key: %w", err)
		}
		private, public = key, &key.PublicKey
	case "ed25519":
		pub, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return "", "", fmt.Errorf("generate ed25519 key: %w", err)
		}
		private, public = key, pub
	default:
		return "", "", fmt.Errorf("unsupported ssh key type %q", keyType)
	}

	block, err := ssh.MarshalPrivateKey(private, comment)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}

	sshPublic, err := ssh.NewPublicKey(public)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}

	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPublic)))
	if comment != "" {
		authorized += " " + comment
	}

	return string(pem.EncodeToMemory(block)), authorized, nil
}

// ValidateSSHKeyPair checks that both halves parse and belong together.
func ValidateSSHKeyPair(privateKey, publicKey string) error {
	signer, err := ssh.ParsePrivateKey([]byte(privateKey))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	public, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	if !SecureCompare(string(signer.PublicKey().Marshal()), string(public.Marshal())) {
		return fmt.Errorf("public key does not match private key")
	}
	return nil
}
