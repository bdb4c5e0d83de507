package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the encryption key in bytes (32 bytes = 256 bits)
	KeySize = 32
	// NonceSize is the size of the nonce for GCM mode (12 bytes is recommended)
	NonceSize = 12
	// SaltSize is the size of the salt for key derivation (32 bytes)
	SaltSize = 32
	// Iterations is the number of iterations for PBKDF2
	Iterations = 100000
	// MinPasswordLength is the shortest accepted master password
	MinPasswordLength = 12

	sealedPrefix = "v1:"
)

// ErrWrongPassword is returned when sealed data cannot be authenticated.
var ErrWrongPassword = errors.New("wrong password or corrupted data")

// Sealer encrypts profile payloads with AES-256-GCM under a key derived
// from a master password. Every Seal uses a fresh salt and nonce.
type Sealer struct {
	password []byte
}

// NewSealer creates a sealer for password
func NewSealer(password string) (*Sealer, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	return &Sealer{password: []byte(password)}, nil
}

// Seal encrypts plaintext and returns "v1:" followed by the base64 of
// salt, nonce and ciphertext.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	combined := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+gcm.Overhead())
	combined = append(combined, salt...)
	combined = append(combined, nonce...)
	combined = gcm.Seal(combined, nonce, plaintext, nil)

	return sealedPrefix + base64.StdEncoding.EncodeToString(combined), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return nil, fmt.Errorf("unsupported sealed data format")
	}

	combined, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	// Minimum size check
	minSize := SaltSize + NonceSize
	if len(combined) <= minSize {
		return nil, fmt.Errorf("invalid data size: expected more than %d bytes, got %d", minSize, len(combined))
	}

	salt := combined[:SaltSize]
	nonce := combined[SaltSize:minSize]
	ciphertext := combined[minSize:]

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

// Close wipes the password from memory. The sealer is unusable afterwards.
func (s *Sealer) Close() {
	SecureZero(s.password)
	s.password = nil
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	if s.password == nil {
		return nil, fmt.Errorf("sealer is closed")
	}

	key := pbkdf2.Key(s.password, salt, Iterations, KeySize, sha256.New)
	defer SecureZero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Checksum returns the hex SHA-256 of data, used to detect tampering of
// unencrypted payloads.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidatePassword validates a password meets minimum requirements
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// SecureZero securely zeros out sensitive byte slices
func SecureZero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
