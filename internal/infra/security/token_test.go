package security

import (
	"bytes"
	"regexp"
	"strconv"
	"testing"
	"time"
)

func TestCodeGeneratorVerificationCode(t *testing.T) {
	now := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)
	gen := NewCodeGenerator(10*time.Minute, WithCodeClock(func() time.Time { return now }))

	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, expiresAt, err := gen.VerificationCode()
		if err != nil {
			t.Fatalf("VerificationCode returned error: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q is not six digits", code)
		}
		value, _ := strconv.Atoi(code)
		if value < 100000 || value > 999999 {
			t.Fatalf("code %d outside range", value)
		}
		if !expiresAt.Equal(now.Add(10 * time.Minute)) {
			t.Fatalf("unexpected expiry %s", expiresAt)
		}
	}
}

func TestCodeGeneratorResetToken(t *testing.T) {
	now := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)
	entropy := bytes.Repeat([]byte{0xab}, ResetTokenBytes)
	gen := NewCodeGenerator(0,
		WithCodeClock(func() time.Time { return now }),
		WithRandomSource(bytes.NewReader(entropy)),
	)

	plain, digest, expiresAt, err := gen.ResetToken()
	if err != nil {
		t.Fatalf("ResetToken returned error: %v", err)
	}
	if len(plain) != 2*ResetTokenBytes {
		t.Fatalf("expected %d hex chars, got %d", 2*ResetTokenBytes, len(plain))
	}
	if digest != HashToken(plain) {
		t.Fatalf("digest does not match plaintext hash")
	}
	if digest == plain {
		t.Fatalf("digest must differ from plaintext")
	}
	if !expiresAt.Equal(now.Add(DefaultCodeTTL)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}
}

func TestCodeGeneratorResetTokenShortRead(t *testing.T) {
	gen := NewCodeGenerator(time.Minute, WithRandomSource(bytes.NewReader([]byte{1, 2, 3})))
	if _, _, _, err := gen.ResetToken(); err == nil {
		t.Fatal("expected error on short entropy read")
	}
}

func TestHashToken(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := HashToken("hello"); got != want {
		t.Fatalf("HashToken = %s, want %s", got, want)
	}
	if !EqualSecrets("123456", "123456") || EqualSecrets("123456", "123457") {
		t.Fatal("EqualSecrets returned unexpected result")
	}
}
