package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func newTestEncryptor(t *testing.T) *AESEncryptor {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate random key: %v", err)
	}
	enc, err := NewAESEncryptor(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error: %v", err)
	}
	return enc
}

func TestNewAESEncryptor(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		errorMsg  string
		wantError bool
	}{
		{name: "empty key", key: "", wantError: true, errorMsg: "encryption key is empty"},
		{name: "invalid base64", key: "not-valid-base64!@#$", wantError: true, errorMsg: "base64 decode failed"},
		{name: "key too short", key: base64.StdEncoding.EncodeToString(make([]byte, 16)), wantError: true, errorMsg: "must be 32 bytes"},
		{name: "key too long", key: base64.StdEncoding.EncodeToString(make([]byte, 64)), wantError: true, errorMsg: "must be 32 bytes"},
		{name: "valid 32-byte key", key: base64.StdEncoding.EncodeToString(make([]byte, 32)), wantError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewAESEncryptor(tt.key)
			if tt.wantError {
				if err == nil {
					t.Errorf("NewAESEncryptor() expected error but got nil")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("NewAESEncryptor() error = %v, want error containing %q", err, tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("NewAESEncryptor() unexpected error = %v", err)
			}
			if enc == nil {
				t.Errorf("NewAESEncryptor() returned nil encryptor")
			}
		})
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc := newTestEncryptor(t)

	plaintexts := [][]byte{
		[]byte("a"),
		[]byte("oauth:shhh-this-is-a-token"),
		bytes.Repeat([]byte("x"), 4096),
	}
	for _, pt := range plaintexts {
		ct, err := enc.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt() error: %v", err)
		}
		got, err := enc.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt() error: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(pt))
		}
	}
}

func TestEncryptProducesUniqueCiphertext(t *testing.T) {
	enc := newTestEncryptor(t)
	a, err := enc.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	b, err := enc.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical ciphertext; nonce reuse?")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc := newTestEncryptor(t)
	ct, err := enc.Encrypt([]byte("integrity matters"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	ct[len(ct)-1] ^= 0xFF
	if _, err := enc.Decrypt(ct); err == nil {
		t.Error("Decrypt() accepted tampered ciphertext")
	}

	if _, err := enc.Decrypt([]byte("short")); err == nil {
		t.Error("Decrypt() accepted truncated ciphertext")
	}
}

func TestStringHelpers(t *testing.T) {
	enc := newTestEncryptor(t)

	stored, err := EncryptString(enc, "oauth:abc123")
	if err != nil {
		t.Fatalf("EncryptString() error: %v", err)
	}
	if stored == "oauth:abc123" {
		t.Error("EncryptString() returned plaintext")
	}
	got, err := DecryptString(enc, stored)
	if err != nil {
		t.Fatalf("DecryptString() error: %v", err)
	}
	if got != "oauth:abc123" {
		t.Errorf("DecryptString() = %q, want original plaintext", got)
	}

	// Nil encryptor and empty values pass through unchanged.
	if got, _ := EncryptString(nil, "plain"); got != "plain" {
		t.Errorf("EncryptString(nil) = %q, want passthrough", got)
	}
	if got, _ := DecryptString(enc, ""); got != "" {
		t.Errorf("DecryptString(empty) = %q, want empty", got)
	}
}
