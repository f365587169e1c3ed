// Package crypto seals exported archives with a password so they can be
// left on shared desktops or buckets.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// MagicBytes prefixes every sealed archive.
	MagicBytes = "MVDZ"

	// FormatVersion of the sealed layout.
	FormatVersion = 1

	// SealedExtension is appended to the name of a sealed archive.
	SealedExtension = ".enc"

	SaltSize  = 16
	NonceSize = 12
	KeyLen    = 32 // AES-256

	// Header: magic(4) + version(2) + time(4) + memory(4) + threads(1) + salt + nonce
	HeaderSize = 4 + 2 + 4 + 4 + 1 + SaltSize + NonceSize
)

var (
	ErrEmptyPassword  = errors.New("password must not be empty")
	ErrInvalidMagic   = errors.New("not a sealed archive")
	ErrInvalidVersion = errors.New("unsupported sealed archive version")
	ErrDecryptFailed  = errors.New("decryption failed: wrong password or corrupted data")
)

// Params are the Argon2id cost parameters. They are stored in the header so
// an archive can be opened regardless of the parameters used to seal it.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams follows the OWASP Argon2id recommendation.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 4}

func (p Params) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, KeyLen)
}

// Seal encrypts plaintext with AES-256-GCM under a key derived from password.
func Seal(plaintext []byte, password string, params Params) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if params.Time == 0 || params.Threads == 0 {
		params = DefaultParams
	}

	header := make([]byte, HeaderSize)
	copy(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint16(header[4:6], FormatVersion)
	binary.LittleEndian.PutUint32(header[6:10], params.Time)
	binary.LittleEndian.PutUint32(header[10:14], params.Memory)
	header[14] = params.Threads

	salt := header[15 : 15+SaltSize]
	nonce := header[15+SaltSize:]
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(params.key(password, salt))
	if err != nil {
		return nil, err
	}

	// The header is authenticated so its parameters cannot be swapped.
	return gcm.Seal(header, nonce, plaintext, header), nil
}

// Open decrypts data produced by Seal.
func Open(data []byte, password string) ([]byte, error) {
	if len(data) < HeaderSize || string(data[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint16(data[4:6]) != FormatVersion {
		return nil, ErrInvalidVersion
	}

	params := Params{
		Time:    binary.LittleEndian.Uint32(data[6:10]),
		Memory:  binary.LittleEndian.Uint32(data[10:14]),
		Threads: data[14],
	}
	if params.Time == 0 || params.Threads == 0 {
		return nil, ErrDecryptFailed
	}
	header := data[:HeaderSize]
	salt := header[15 : 15+SaltSize]
	nonce := header[15+SaltSize:]

	gcm, err := newGCM(params.key(password, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[HeaderSize:], header)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data starts with the sealed archive magic.
func IsSealed(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == MagicBytes
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
