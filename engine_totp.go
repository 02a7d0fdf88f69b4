package authport

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const totpSecretBytes = 20

type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &totpManager{config: cfg}
}

// DeriveSecret produces the per-account shared secret from the keying
// material. The derivation is deterministic so the secret survives
// restarts and never needs its own persistence: the same key and
// account always yield the same enrollment.
func (m *totpManager) DeriveSecret(key []byte, account string) ([]byte, string) {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte("totp:" + account))
	raw := mac.Sum(nil)[:totpSecretBytes]

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw)
}

func (m *totpManager) ProvisionURI(secretBase32, account string) string {
	issuer := m.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode checks the submitted code against the current time step
// and the configured skew window. The boolean result is authoritative;
// the error covers malformed configuration only.
func (m *totpManager) VerifyCode(secret []byte, code string, now time.Time) (bool, error) {
	if m == nil {
		return false, ErrEngineNotReady
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isNumericString(trimmed) {
		return false, nil
	}
	if len(secret) == 0 {
		return false, errors.New("empty totp secret")
	}

	baseCounter := now.Unix() / int64(m.config.Period)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	code := bin % mod
	return fmt.Sprintf("%0*d", digits, code), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// userTOTPSecret derives the user's shared secret from the signing key
// and the account email.
func (e *Engine) userTOTPSecret(user *User) ([]byte, string) {
	return e.totp.DeriveSecret(e.totpKey, user.Email)
}

// VerifyTotp checks a submitted one-time code for the user. A wrong
// code counts as a failed login attempt for the account before
// returning [ErrInvalidVerificationCode], so code guessing trips the
// same lockout as password guessing.
func (e *Engine) VerifyTotp(ctx context.Context, user *User, code string) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	if !e.config.TOTP.Enabled {
		return ErrTOTPDisabled
	}
	if user == nil {
		return ErrUnauthorized
	}

	secret, _ := e.userTOTPSecret(user)
	ok, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricTOTPFailure)
		if _, regErr := e.store.RegisterFailedLogin(ctx, user.Email); regErr != nil {
			e.logger.Warn("failed-login registration failed", zap.Error(regErr))
		}
		e.emitAudit(ctx, auditEventTOTPFailure, false, user.ID, "", ErrInvalidVerificationCode, nil)
		return ErrInvalidVerificationCode
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPSuccess, true, user.ID, "", nil, nil)

	return nil
}

// ProvisionURI returns the otpauth enrollment URI for the user.
func (e *Engine) ProvisionURI(user *User) (string, error) {
	if e == nil || e.totp == nil {
		return "", ErrEngineNotReady
	}
	if !e.config.TOTP.Enabled {
		return "", ErrTOTPDisabled
	}
	_, secretBase32 := e.userTOTPSecret(user)
	return e.totp.ProvisionURI(secretBase32, user.Email), nil
}

// QRCode renders the user's enrollment URI as an SVG image. The module
// matrix comes out at one user unit per module with a one-module quiet
// zone; clients scale the vector as needed.
func (e *Engine) QRCode(user *User) ([]byte, error) {
	uri, err := e.ProvisionURI(user)
	if err != nil {
		return nil, err
	}

	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}

	svg := renderQRCodeSVG(code)
	e.metricInc(MetricQRGenerated)

	return svg, nil
}

func renderQRCodeSVG(code barcode.Barcode) []byte {
	bounds := code.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		w+2, h+2)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, w+2, h+2)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, bl, _ := code.At(x, y).RGBA()
			if r == 0 && g == 0 && bl == 0 {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="1" height="1" fill="#000000"/>`,
					x-bounds.Min.X+1, y-bounds.Min.Y+1)
			}
		}
	}
	b.WriteString(`</svg>`)

	return []byte(b.String())
}
