package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123")

func TestSignVerify(t *testing.T) {
	s, err := NewSigner(testSecret, time.Hour)
	assert.Equal(t, err, nil)
	payload := []byte{0, 1, 2, 250, 251}
	tok, err := s.Sign("orders", payload)
	assert.Equal(t, err, nil)

	viewID, got, err := s.Verify(tok)
	assert.Equal(t, err, nil)
	assert.Equal(t, viewID, "orders")
	assert.Equal(t, got, payload)
}

func TestNewSignerRejectsShortSecret(t *testing.T) {
	_, err := NewSigner([]byte("short"), time.Hour)
	assert.NotEqual(t, err, nil)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s, _ := NewSigner(testSecret, time.Hour)
	tok, err := s.Sign("orders", []byte("state"))
	assert.Equal(t, err, nil)

	parts := strings.Split(tok, ".")
	assert.Equal(t, len(parts), 3)
	other, _ := NewSigner(append([]byte("x"), testSecret...), time.Hour)
	forged, err := other.Sign("orders", []byte("evil"))
	assert.Equal(t, err, nil)
	mixed := strings.Join([]string{parts[0], strings.Split(forged, ".")[1], parts[2]}, ".")

	_, _, err = s.Verify(mixed)
	assert.Equal(t, errors.Is(err, ErrToken), true)
	_, _, err = s.Verify(forged)
	assert.Equal(t, errors.Is(err, ErrToken), true)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s, _ := NewSigner(testSecret, time.Minute)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	tok, err := s.Sign("orders", []byte("state"))
	assert.Equal(t, err, nil)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, _, err = s.Verify(tok)
	assert.Equal(t, errors.Is(err, ErrToken), true)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	s, _ := NewSigner(testSecret, 0)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	tok, _ := s.Sign("orders", nil)
	s.now = func() time.Time { return base.AddDate(10, 0, 0) }
	_, _, err := s.Verify(tok)
	assert.Equal(t, err, nil)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	s, _ := NewSigner(testSecret, time.Hour)
	claims := stateClaims{ViewID: "orders", State: ""}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	assert.Equal(t, err, nil)
	_, _, err = s.Verify(tok)
	assert.Equal(t, errors.Is(err, ErrToken), true)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.Equal(t, err, nil)
	_, _, err = s.Verify(none)
	assert.Equal(t, errors.Is(err, ErrToken), true)
}
