// Package encryption implements the payload-encryption collaborator: PBKDF2
// key derivation from the user's passphrase plus per-user salt, and AES-GCM
// for the transaction ciphertexts produced by the client.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	iterations = 100_000
	nonceLen   = 12
	saltLen    = 16
)

var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// DeriveKey derives the AES-256 key from passphrase and salt
// (PBKDF2-SHA256, 100k iterations — must match the client's WebCrypto params).
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)
}

// DecryptString decrypts a base64 ciphertext whose first 12 bytes are the
// GCM nonce. A wrong key surfaces as an authentication error.
func DecryptString(ciphertextB64 string, key []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < nonceLen {
		return "", ErrCiphertextTooShort
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, raw[:nonceLen], raw[nonceLen:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}

// EncryptString is the inverse of DecryptString (used by tests and import
// tooling; production ciphertexts come from the client).
func EncryptString(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// NewSaltHex generates a fresh per-user salt, hex encoded for storage.
func NewSaltHex() (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return hex.EncodeToString(salt), nil
}

// DecodeSaltHex decodes a stored hex salt. Malformed input yields an empty
// salt rather than an error, matching the client's lenient decoder.
func DecodeSaltHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return []byte{}
	}
	return b
}
