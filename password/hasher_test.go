package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		LegacySalt: "test-salt",
		Argon2: Argon2Config{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

func TestLegacyDeterministic(t *testing.T) {
	l := NewLegacy("fixed-salt")

	a := l.Hash("s3cret!Pw")
	b := l.Hash("s3cret!Pw")
	if a != b {
		t.Fatalf("legacy digests differ: %q vs %q", a, b)
	}
	if !l.Verify("s3cret!Pw", a) {
		t.Error("legacy digest does not verify")
	}
	if l.Verify("wrong", a) {
		t.Error("wrong password verified")
	}
}

func TestLegacySaltChangesDigest(t *testing.T) {
	a := NewLegacy("salt-a").Hash("same-password")
	b := NewLegacy("salt-b").Hash("same-password")
	if a == b {
		t.Fatal("different salts produced the same digest")
	}
}

func TestHasherDefaultsToArgon2(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	digest, err := h.Hash("s3cret!Pw")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Errorf("digest %q is not PHC argon2id", digest)
	}

	ok, err := h.Verify("s3cret!Pw", digest)
	if err != nil || !ok {
		t.Errorf("Verify = %v, %v; want true, nil", ok, err)
	}
	ok, err = h.Verify("wrong", digest)
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestHasherPreferLegacy(t *testing.T) {
	cfg := testConfig()
	cfg.PreferLegacy = true
	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	digest, err := h.Hash("s3cret!Pw")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if strings.HasPrefix(digest, "$argon2id$") {
		t.Error("PreferLegacy produced an argon2id digest")
	}

	again, _ := h.Hash("s3cret!Pw")
	if digest != again {
		t.Error("legacy digests are not deterministic")
	}
}

func TestHasherVerifiesBothSchemes(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	legacyDigest := NewLegacy("test-salt").Hash("s3cret!Pw")
	ok, err := h.Verify("s3cret!Pw", legacyDigest)
	if err != nil || !ok {
		t.Errorf("legacy Verify = %v, %v; want true, nil", ok, err)
	}

	argonDigest, _ := h.Hash("s3cret!Pw")
	ok, err = h.Verify("s3cret!Pw", argonDigest)
	if err != nil || !ok {
		t.Errorf("argon2 Verify = %v, %v; want true, nil", ok, err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	legacyDigest := NewLegacy("test-salt").Hash("s3cret!Pw")
	if !h.NeedsUpgrade(legacyDigest) {
		t.Error("legacy digest should need an upgrade when argon2id is preferred")
	}

	argonDigest, _ := h.Hash("s3cret!Pw")
	if h.NeedsUpgrade(argonDigest) {
		t.Error("current argon2id digest should not need an upgrade")
	}

	cfg := testConfig()
	cfg.PreferLegacy = true
	legacyFirst, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	if legacyFirst.NeedsUpgrade(legacyDigest) {
		t.Error("legacy digest should stay when legacy is preferred")
	}
}

func TestVerifyEmptyInputs(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	if ok, _ := h.Verify("", "digest"); ok {
		t.Error("empty password verified")
	}
	if ok, _ := h.Verify("password", ""); ok {
		t.Error("empty digest verified")
	}
}

func TestNewHasherRejectsEmptySalt(t *testing.T) {
	cfg := testConfig()
	cfg.LegacySalt = ""
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("NewHasher accepted an empty legacy salt")
	}
}

func TestArgon2RejectsForeignDigest(t *testing.T) {
	a, err := NewArgon2(testConfig().Argon2)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	if _, err := a.Verify("pw", "$argon2i$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA"); err == nil {
		t.Error("argon2i digest accepted")
	}
	if _, err := a.Verify("pw", "not-a-phc-digest"); err == nil {
		t.Error("opaque digest accepted")
	}
}
