package utils

import (
    "crypto/aes"
    "crypto/cipher"
    "crypto/rand"
    "encoding/base64"
    "errors"
    "fmt"
    "io"
)

// AccountCipher encrypts and decrypts bank account numbers with AES-GCM.
// Ciphertexts are base64 strings of nonce||sealed so they fit in a
// VARCHAR column. The key must be 16, 24, or 32 bytes.
type AccountCipher struct {
    aead cipher.AEAD
}

// NewAccountCipher builds an AccountCipher from the raw key bytes.
func NewAccountCipher(key []byte) (*AccountCipher, error) {
    block, err := aes.NewCipher(key)
    if err != nil {
        return nil, fmt.Errorf("account cipher: %w", err)
    }
    aead, err := cipher.NewGCM(block)
    if err != nil {
        return nil, fmt.Errorf("account cipher: %w", err)
    }
    return &AccountCipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce.
func (c *AccountCipher) Encrypt(plain string) (string, error) {
    nonce := make([]byte, c.aead.NonceSize())
    if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
        return "", err
    }
    out := c.aead.Seal(nonce, nonce, []byte(plain), nil)
    return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It fails if the ciphertext was tampered
// with or was produced under a different key.
func (c *AccountCipher) Decrypt(enc string) (string, error) {
    raw, err := base64.StdEncoding.DecodeString(enc)
    if err != nil {
        return "", err
    }
    ns := c.aead.NonceSize()
    if len(raw) < ns {
        return "", errors.New("account cipher: ciphertext too short")
    }
    plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
    if err != nil {
        return "", err
    }
    return string(plain), nil
}
