package ssh

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// IdentityFingerprint checks that path holds a private key and returns the
// SHA256 fingerprint of its public half. Passphrase-protected keys are
// accepted; their fingerprint is empty when the file carries no public key.
func IdentityFingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read identity file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			if missing.PublicKey == nil {
				return "", nil
			}
			return ssh.FingerprintSHA256(missing.PublicKey), nil
		}
		return "", fmt.Errorf("identity file %s is not a private key: %w", path, err)
	}

	return ssh.FingerprintSHA256(signer.PublicKey()), nil
}

// ValidateIdentity checks that path holds a private key.
func ValidateIdentity(path string) error {
	_, err := IdentityFingerprint(path)
	return err
}
