package security

import "testing"

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := NewPasswordHasher(DefaultBcryptCost)

	hash, err := hasher.Hash("Str0ng!Pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "Str0ng!Pass" {
		t.Fatal("hash must not equal plaintext")
	}

	ok, err := hasher.Verify("Str0ng!Pass", hash)
	if err != nil {
		t.Fatalf("verify password: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}
}

func TestPasswordHasherMismatchIsNotAnError(t *testing.T) {
	hasher := NewPasswordHasher(DefaultBcryptCost)

	hash, err := hasher.Hash("Str0ng!Pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	ok, err := hasher.Verify("Wr0ng!Pass", hash)
	if err != nil {
		t.Fatalf("mismatch must not surface as error, got %v", err)
	}
	if ok {
		t.Fatal("expected mismatching password to fail verification")
	}
}

func TestPasswordHasherMalformedHash(t *testing.T) {
	hasher := NewPasswordHasher(DefaultBcryptCost)

	if _, err := hasher.Verify("Str0ng!Pass", "not-a-bcrypt-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestPasswordHasherCostFallback(t *testing.T) {
	hasher := NewPasswordHasher(99)
	if hasher.cost != DefaultBcryptCost {
		t.Fatalf("expected cost fallback to %d, got %d", DefaultBcryptCost, hasher.cost)
	}
}
