package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestSealOpen(t *testing.T) {
	sealer, err := NewSealer("test-password-123")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"simple text", "hello world"},
		{"json data", `{"sections": [{"name": "Window"}]}`},
		{"unicode text", "🔐 Security Test 🔒"},
		{"long text", strings.Repeat("a", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := sealer.Seal([]byte(tt.plaintext))
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if !strings.HasPrefix(sealed, "v1:") {
				t.Errorf("Sealed data missing version prefix: %q", sealed)
			}

			opened, err := sealer.Open(sealed)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if string(opened) != tt.plaintext {
				t.Errorf("Opened text doesn't match original: expected %q, got %q", tt.plaintext, string(opened))
			}
		})
	}
}

func TestSealUsesFreshSaltAndNonce(t *testing.T) {
	sealer, err := NewSealer("test-password-123")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	a, err := sealer.Seal([]byte("same input"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	b, err := sealer.Seal([]byte("same input"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if a == b {
		t.Error("Sealing the same input twice produced identical output")
	}
}

func TestOpenWithWrongPassword(t *testing.T) {
	sealer, _ := NewSealer("correct-password-1")
	other, _ := NewSealer("another-password-2")

	sealed, err := sealer.Seal([]byte("secret settings"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	_, err = other.Open(sealed)
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
}

func TestOpenInvalidInput(t *testing.T) {
	sealer, _ := NewSealer("test-password-123")

	tests := []struct {
		name   string
		sealed string
	}{
		{"missing prefix", "aGVsbG8="},
		{"bad base64", "v1:not-base64!"},
		{"too short", "v1:aGVsbG8="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sealer.Open(tt.sealed); err == nil {
				t.Error("Expected error for invalid input")
			}
		})
	}
}

func TestClosedSealer(t *testing.T) {
	sealer, _ := NewSealer("test-password-123")
	sealer.Close()

	if _, err := sealer.Seal([]byte("data")); err == nil {
		t.Error("Expected error sealing with a closed sealer")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"secure-password-123", false},
		{"12characters", false},
		{"short", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}

	if _, err := NewSealer("short"); err == nil {
		t.Error("NewSealer accepted a short password")
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("payload"))
	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}
	if a != Checksum([]byte("payload")) {
		t.Error("Checksum is not deterministic")
	}
	if a == Checksum([]byte("payload!")) {
		t.Error("Different payloads produced the same checksum")
	}
}

func TestSecureZero(t *testing.T) {
	data := []byte("sensitive")
	SecureZero(data)
	for i, b := range data {
		if b != 0 {
			t.Errorf("Byte %d not zeroed", i)
		}
	}
}
