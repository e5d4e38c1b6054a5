// Package secrets implements the hashlock primitives for Fusion+ swaps:
// secret generation, keccak256 hashlock computation and the merkle tree over
// partial-fill secrets. Everything here is pure; no I/O.
package secrets

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const secretBytes = 32

var secretRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// GenerateSecret produces a cryptographically secure 32-byte secret as
// 0x-prefixed hex.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %v", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// HashSecret computes the keccak256 hashlock of a secret. The same secret
// always yields the same hash; this must match the escrow contracts' check.
func HashSecret(secret string) (string, error) {
	b, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(crypto.Keccak256(b)), nil
}

// ValidateSecretFormat rejects anything that is not 0x plus 64 hex characters.
func ValidateSecretFormat(secret string) error {
	if !secretRe.MatchString(secret) {
		return fmt.Errorf("secret must be 0x-prefixed 32-byte hex, got %d chars", len(secret))
	}
	return nil
}

// VerifySecretHash format-validates the secret, hashes it and compares with
// the expected hashlock. Fails closed: any decoding problem means invalid.
func VerifySecretHash(secret, expectedHash string) error {
	if err := ValidateSecretFormat(secret); err != nil {
		return err
	}
	h, err := HashSecret(secret)
	if err != nil {
		return err
	}
	if !strings.EqualFold(h, expectedHash) {
		return fmt.Errorf("secret hash mismatch")
	}
	return nil
}

// GeneratePartialSecrets derives n distinct secrets deterministically from a
// master secret by hashing master bytes followed by the big-endian index, so
// the same master always yields the same partial set.
func GeneratePartialSecrets(masterSecret string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("partial secret count must be positive, got %d", n)
	}
	master, err := decodeSecret(masterSecret)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		idx := make([]byte, 8)
		binary.BigEndian.PutUint64(idx, uint64(i))
		out[i] = "0x" + hex.EncodeToString(crypto.Keccak256(master, idx))
	}
	return out, nil
}

func decodeSecret(s string) ([]byte, error) {
	if err := ValidateSecretFormat(s); err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
