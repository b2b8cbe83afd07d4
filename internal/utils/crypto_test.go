package utils

import (
    "strings"
    "testing"
)

func TestAccountCipherRoundTrip(t *testing.T) {
    key := []byte("0123456789abcdef0123456789abcdef") // 32 bytes
    c, err := NewAccountCipher(key)
    if err != nil {
        t.Fatalf("new cipher: %v", err)
    }

    plain := "110-222-333444"
    enc, err := c.Encrypt(plain)
    if err != nil {
        t.Fatalf("encrypt: %v", err)
    }
    if enc == plain || strings.Contains(enc, plain) {
        t.Fatal("ciphertext leaks the plaintext")
    }

    got, err := c.Decrypt(enc)
    if err != nil {
        t.Fatalf("decrypt: %v", err)
    }
    if got != plain {
        t.Fatalf("round trip = %q, want %q", got, plain)
    }

    // Fresh nonce per call: two encryptions of the same input differ.
    enc2, err := c.Encrypt(plain)
    if err != nil {
        t.Fatal(err)
    }
    if enc2 == enc {
        t.Fatal("nonce reuse: identical ciphertexts")
    }
}

func TestAccountCipherRejectsTampering(t *testing.T) {
    c, err := NewAccountCipher([]byte("0123456789abcdef")) // 16 bytes
    if err != nil {
        t.Fatal(err)
    }
    enc, err := c.Encrypt("secret")
    if err != nil {
        t.Fatal(err)
    }

    cases := []struct {
        name string
        in   string
    }{
        {"not base64", "%%%"},
        {"too short", "QQ=="},
        {"flipped tail", enc[:len(enc)-4] + "AAA="},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if _, err := c.Decrypt(tc.in); err == nil {
                t.Fatal("decrypt accepted corrupt input")
            }
        })
    }
}

func TestNewAccountCipherKeyLength(t *testing.T) {
    if _, err := NewAccountCipher([]byte("short")); err == nil {
        t.Fatal("accepted an invalid key length")
    }
}
