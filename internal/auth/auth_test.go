package auth

import "testing"

func TestScopeIsValid(t *testing.T) {
	for _, s := range []Scope{ScopeAdmin, ScopeKeyAdder, ScopeCollector} {
		if !s.IsValid() {
			t.Fatalf("scope %q should be valid", s)
		}
	}
	for _, s := range []Scope{"", "root", "Admin"} {
		if s.IsValid() {
			t.Fatalf("scope %q should be invalid", s)
		}
	}
}

func TestCanEdit(t *testing.T) {
	if !(Claims{Scope: ScopeAdmin}).CanEdit() {
		t.Fatal("admin should be allowed to edit")
	}
	if !(Claims{Scope: ScopeKeyAdder}).CanEdit() {
		t.Fatal("keyadder should be allowed to edit")
	}
	if (Claims{Scope: ScopeCollector}).CanEdit() {
		t.Fatal("collector must not edit by id")
	}
}

func TestHashKeyIsDeterministicAndSalted(t *testing.T) {
	h1 := HashKey("secret", "salt-a")
	h2 := HashKey("secret", "salt-a")
	if h1 != h2 {
		t.Fatal("same key and salt must hash equal")
	}
	if HashKey("secret", "salt-b") == h1 {
		t.Fatal("different salt must change the digest")
	}
	if HashKey("other", "salt-a") == h1 {
		t.Fatal("different key must change the digest")
	}
	if len(h1) != 64 {
		t.Fatalf("digest length = %d, want 64 hex chars", len(h1))
	}
}

func TestGenerateKeyUnique(t *testing.T) {
	a, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	b, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if a == b {
		t.Fatal("two generated keys collided")
	}
	if len(a) < 32 {
		t.Fatalf("key %q too short", a)
	}
}

func TestKeytag(t *testing.T) {
	if got := Keytag("abcdefghijkl"); got != "abcdefgh" {
		t.Fatalf("keytag = %q, want abcdefgh", got)
	}
	if got := Keytag("short"); got != "short" {
		t.Fatalf("keytag of short key = %q, want short", got)
	}
}
