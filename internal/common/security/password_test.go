package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("pw", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "pw" {
		t.Fatal("Hash must not equal the plaintext password")
	}

	if !CheckPasswordHash("pw", hash) {
		t.Error("Expected matching password to verify")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("Expected non-matching password to fail verification")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := HashPassword("pw", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	h2, err := HashPassword("pw", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if h1 == h2 {
		t.Error("Two hashes of the same password should differ")
	}
}
