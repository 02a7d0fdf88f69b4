package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpiredSignature is returned by Decode when now is past the exp
	// claim.
	ErrExpiredSignature = errors.New("token signature expired")
	// ErrImmatureSignature is returned by Decode when now is before the nbf
	// claim.
	ErrImmatureSignature = errors.New("token signature not yet valid")
	// ErrMalformedToken covers every other decode failure: bad structure,
	// bad signature, wrong algorithm.
	ErrMalformedToken = errors.New("malformed token")
)

// Claims is the transient payload carried inside a signed token. It is
// never persisted as its own entity: it is built at issuance and dies at
// verification.
//
// UserID holds the user's stable identity value (not a primary key), so
// rotating that value orphans every outstanding payload at once.
// PwdFingerprint is a SHA-256 fingerprint of the password digest at
// issuance time; verification re-derives it so a server-side password
// change silently invalidates older payloads without leaking any hash
// material into the token.
type Claims struct {
	UserID         string `json:"uid"`
	PwdFingerprint string `json:"hpwd,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies claim sets with a single symmetric secret.
//
// Codec instances are configured once at process start and are safe for
// concurrent use.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
}

// NewCodec builds a codec for the given secret. Algorithm may be empty or
// "HS256"; anything else is rejected at construction, not at decode time.
func NewCodec(secret []byte, algorithm string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}
	switch algorithm {
	case "", "HS256":
	default:
		return nil, errors.New("unsupported signing algorithm")
	}

	return &Codec{secret: secret, method: jwt.SigningMethodHS256}, nil
}

// Encode signs the claim set. The caller must have set a fresh jti
// (Claims.ID) before calling; the codec never generates identifiers.
func (c *Codec) Encode(claims *Claims) (string, error) {
	if c == nil {
		return "", errors.New("nil codec")
	}
	if claims == nil || claims.ID == "" {
		return "", errors.New("claims require a caller-generated jti")
	}

	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode verifies signature and time claims and returns the payload.
// Failures map to the three package sentinels and nothing else.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	if c == nil {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredSignature
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrImmatureSignature
		default:
			return nil, ErrMalformedToken
		}
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// NewClaims assembles a payload with iat/nbf at now and exp at now+ttl.
// The jti is still the caller's job.
func NewClaims(userID, pwdFingerprint string, now time.Time, ttl time.Duration) *Claims {
	return &Claims{
		UserID:         userID,
		PwdFingerprint: pwdFingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
