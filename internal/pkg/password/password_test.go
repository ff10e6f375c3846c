package password

import (
	"errors"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify("correct horse", hash) {
		t.Fatal("expected password to verify")
	}
	if err := Compare("wrong", hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestCompareMalformedHash(t *testing.T) {
	err := Compare("x", "not-a-bcrypt-hash")
	if err == nil || errors.Is(err, ErrMismatch) {
		t.Fatalf("expected malformed hash error, got %v", err)
	}
}
