package artifacts

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
)

// Encrypted payload layout: marker || IV(16B) || ciphertext. The marker lets
// retrieval auto-detect encryption without a metadata lookup.
var encMarker = []byte("ENC1")

const keySize = 32

// Encrypt wraps plaintext as marker||IV||AES-256-CTR(ciphertext). A missing
// or short key is fatal: the caller must never fall back to storing
// plaintext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, types.ErrEncryptionKeyMissing
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	out := make([]byte, 0, len(encMarker)+len(iv)+len(plaintext))
	out = append(out, encMarker...)
	out = append(out, iv...)

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, plaintext)
	return append(out, ciphertext...), nil
}

// IsEncrypted reports whether raw carries the encryption marker.
func IsEncrypted(raw []byte) bool {
	return bytes.HasPrefix(raw, encMarker)
}

// Decrypt unwraps a marker||IV||ciphertext payload. Raw bytes without the
// marker pass through untouched.
func Decrypt(key, raw []byte) ([]byte, error) {
	if !IsEncrypted(raw) {
		return raw, nil
	}
	if len(key) != keySize {
		return nil, types.ErrEncryptionKeyMissing
	}
	body := raw[len(encMarker):]
	if len(body) < aes.BlockSize {
		return nil, fmt.Errorf("encrypted payload truncated")
	}
	iv, ciphertext := body[:aes.BlockSize], body[aes.BlockSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}
