package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the shortest accepted signing secret.
const MinSecretLen = 16

// ErrToken is returned for tokens that fail verification.
var ErrToken = errors.New("codec: invalid state token")

type stateClaims struct {
	ViewID string `json:"vid"`
	State  string `json:"st"`
	jwt.RegisteredClaims
}

// Signer wraps encoded state in an HS256 token so that state held by the
// client cannot be altered.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a signer. A zero ttl issues tokens that never expire.
func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("codec: signing secret must be at least %d bytes", MinSecretLen)
	}
	return &Signer{secret: append([]byte(nil), secret...), ttl: ttl, now: time.Now}, nil
}

// Sign returns a token carrying payload for viewID.
func (s *Signer) Sign(viewID string, payload []byte) (string, error) {
	now := s.now()
	claims := stateClaims{
		ViewID: viewID,
		State:  base64.RawURLEncoding.EncodeToString(payload),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("codec: sign: %w", err)
	}
	return tok, nil
}

// Verify checks a token and returns the view id and payload it carries.
func (s *Signer) Verify(token string) (string, []byte, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrToken, err)
	}
	payload, err := base64.RawURLEncoding.DecodeString(claims.State)
	if err != nil {
		return "", nil, fmt.Errorf("%w: payload: %v", ErrToken, err)
	}
	return claims.ViewID, payload, nil
}
