package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertext is returned when a stored entry cannot be decrypted:
// truncated data, bad padding, or a wrong master key.
var ErrCiphertext = errors.New("invalid ciphertext")

// cipherKey derives the AES-256 key from the master key.
func cipherKey(master string) []byte {
	sum := sha256.Sum256([]byte(master))
	return sum[:]
}

// Encrypt encrypts a password with AES-256-CBC under the master key and
// returns it base64-encoded. A fresh random IV is prepended to the
// ciphertext, so encrypting the same password twice yields different
// output.
func Encrypt(master, plaintext string) (string, error) {
	block, err := aes.NewCipher(cipherKey(master))
	if err != nil {
		return "", fmt.Errorf("vault: cipher: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))

	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("vault: iv: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func Decrypt(master, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("vault: %w: %v", ErrCiphertext, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("vault: %w: bad length %d", ErrCiphertext, len(raw))
	}

	block, err := aes.NewCipher(cipherKey(master))
	if err != nil {
		return "", fmt.Errorf("vault: cipher: %w", err)
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// pad applies PKCS#7 padding.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpad validates and strips PKCS#7 padding. Invalid padding means the
// key was wrong or the data corrupted.
func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("vault: %w: bad padding length", ErrCiphertext)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("vault: %w: bad padding", ErrCiphertext)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("vault: %w: bad padding", ErrCiphertext)
		}
	}
	return b[:len(b)-n], nil
}
