package authport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// RFC 4226 appendix D vectors: secret "12345678901234567890", SHA1,
// 6 digits.
func TestHOTPReferenceVectors(t *testing.T) {
	secret := []byte("12345678901234567890")
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	for counter, expected := range want {
		code, err := hotpCode(secret, int64(counter), 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpCode(%d) failed: %v", counter, err)
		}
		if code != expected {
			t.Errorf("counter %d: code = %s, want %s", counter, code, expected)
		}
	}
}

// RFC 6238 appendix B vectors for SHA1, 8 digits, 30s period.
func TestTOTPReferenceVectors(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 8, Period: 30, Skew: 0, Algorithm: "SHA1"})
	secret := []byte("12345678901234567890")

	cases := []struct {
		unix int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.unix, 0))
		if err != nil {
			t.Fatalf("VerifyCode(%d) failed: %v", tc.unix, err)
		}
		if !ok {
			t.Errorf("code %s at t=%d rejected", tc.code, tc.unix)
		}
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"})
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111109, 0)

	previous, err := hotpCode(secret, now.Unix()/30-1, 6, "SHA1")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := m.VerifyCode(secret, previous, now)
	if err != nil || !ok {
		t.Errorf("previous-step code rejected inside skew window: %v", err)
	}

	twoBack, err := hotpCode(secret, now.Unix()/30-2, 6, "SHA1")
	if err != nil {
		t.Fatal(err)
	}
	ok, _ = m.VerifyCode(secret, twoBack, now)
	if ok {
		t.Error("code outside skew window accepted")
	}
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"})
	secret := []byte("12345678901234567890")

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		ok, err := m.VerifyCode(secret, code, time.Now())
		if err != nil || ok {
			t.Errorf("VerifyCode(%q) = %v, %v; want false, nil", code, ok, err)
		}
	}
}

func TestDeriveSecretDeterministic(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1})
	key := []byte("signing-key")

	rawA, b32A := m.DeriveSecret(key, "alice@example.org")
	rawB, b32B := m.DeriveSecret(key, "alice@example.org")
	if string(rawA) != string(rawB) || b32A != b32B {
		t.Error("same key and account produced different secrets")
	}
	if len(rawA) != totpSecretBytes {
		t.Errorf("secret length = %d, want %d", len(rawA), totpSecretBytes)
	}

	rawC, _ := m.DeriveSecret(key, "bob@example.org")
	if string(rawA) == string(rawC) {
		t.Error("different accounts share a secret")
	}
}

// stubStore satisfies Store for engine tests that only touch the
// failed-login counter; everything else panics if reached.
type stubStore struct {
	Store
	failed map[string]int
}

func (s *stubStore) RegisterFailedLogin(_ context.Context, username string) (int, error) {
	if s.failed == nil {
		s.failed = make(map[string]int)
	}
	s.failed[username]++
	return s.failed[username], nil
}

func newTOTPEngine(t *testing.T, enabled bool) (*Engine, *stubStore, []byte) {
	t.Helper()

	key := []byte("totp-unit-test-signing-key")
	secretFile := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(secretFile, key, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := defaultConfig()
	cfg.Token.SecretFile = secretFile
	cfg.TOTP.Enabled = enabled

	st := &stubStore{}
	engine, err := New().
		WithConfig(cfg).
		WithStore(st).
		WithLogger(zap.NewNop()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, st, key
}

func TestVerifyTotpAcceptsCurrentCode(t *testing.T) {
	engine, _, key := newTOTPEngine(t, true)
	user := &User{ID: "u1", Email: "alice@example.org"}

	secret, _ := newTOTPManager(engine.config.TOTP).DeriveSecret(key, user.Email)
	code, err := hotpCode(secret, time.Now().Unix()/int64(engine.config.TOTP.Period),
		engine.config.TOTP.Digits, engine.config.TOTP.Algorithm)
	if err != nil {
		t.Fatal(err)
	}

	if err := engine.VerifyTotp(context.Background(), user, code); err != nil {
		t.Fatalf("VerifyTotp rejected the current code: %v", err)
	}
}

func TestVerifyTotpBadCodeCountsFailure(t *testing.T) {
	engine, st, _ := newTOTPEngine(t, true)
	user := &User{ID: "u1", Email: "alice@example.org"}

	err := engine.VerifyTotp(context.Background(), user, "000000")
	if !errors.Is(err, ErrInvalidVerificationCode) {
		t.Fatalf("error = %v, want ErrInvalidVerificationCode", err)
	}
	if st.failed[user.Email] != 1 {
		t.Errorf("failed count = %d, want 1", st.failed[user.Email])
	}
}

func TestVerifyTotpDisabled(t *testing.T) {
	engine, _, _ := newTOTPEngine(t, false)
	user := &User{ID: "u1", Email: "alice@example.org"}

	if err := engine.VerifyTotp(context.Background(), user, "123456"); !errors.Is(err, ErrTOTPDisabled) {
		t.Fatalf("error = %v, want ErrTOTPDisabled", err)
	}
	if _, err := engine.QRCode(user); !errors.Is(err, ErrTOTPDisabled) {
		t.Fatalf("QRCode error = %v, want ErrTOTPDisabled", err)
	}
}

func TestProvisionURIShape(t *testing.T) {
	engine, _, _ := newTOTPEngine(t, true)
	user := &User{ID: "u1", Email: "alice@example.org"}

	uri, err := engine.ProvisionURI(user)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Errorf("uri = %q", uri)
	}
	for _, fragment := range []string{"issuer=authport", "digits=6", "period=30", "secret="} {
		if !strings.Contains(uri, fragment) {
			t.Errorf("uri missing %q: %s", fragment, uri)
		}
	}
}

func TestQRCodeRendersSVG(t *testing.T) {
	engine, _, _ := newTOTPEngine(t, true)
	user := &User{ID: "u1", Email: "alice@example.org"}

	svg, err := engine.QRCode(user)
	if err != nil {
		t.Fatalf("QRCode failed: %v", err)
	}
	out := string(svg)
	if !strings.HasPrefix(out, "<svg") || !strings.HasSuffix(out, "</svg>") {
		t.Errorf("not an SVG document: %.30s", out)
	}
	if !strings.Contains(out, `fill="#000000"`) {
		t.Error("no dark modules rendered")
	}
}
