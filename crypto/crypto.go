package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize  = 32
	SaltSize = 16
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveKey turns the user's PIN into the AES-256 key for the record store.
func DeriveKey(pin string, salt []byte) []byte {
	// Argon2id parameters: 1 pass, 64MB memory, 4 threads, 32 bytes key
	return argon2.IDKey([]byte(pin), salt, 1, 64*1024, 4, KeySize)
}

// recordInfo binds derived record keys to their use.
var recordInfo = []byte("bienestar record key v1")

// RecordKey expands a secret of any length, nil included, into the
// AES-256 key that seals store records.
func RecordKey(secret []byte) []byte {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, recordInfo), key); err != nil {
		// HKDF-SHA256 only fails past 255*32 bytes of output.
		panic(err)
	}
	return key
}

func GenerateSalt() ([]byte, error) {
	b := make([]byte, SaltSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return b, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with AES-GCM and returns nonce||ciphertext as base64.
func Encrypt(plaintext []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt fails on any key mismatch or tampering since GCM authenticates the payload.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, body := sealed[:nonceSize], sealed[nonceSize:]
	return gcm.Open(nil, nonce, body, nil)
}

// EncryptString and DecryptString are used where the payload is text, such as
// wrapped session keys.
func EncryptString(text string, key []byte) (string, error) {
	return Encrypt([]byte(text), key)
}

func DecryptString(encoded string, key []byte) (string, error) {
	plain, err := Decrypt(encoded, key)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
