package auth

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/org/stockdesk/internal/codec"
)

var (
	ErrMalformedCredential = errors.New("malformed credential")
	ErrMalformedFreshness  = errors.New("malformed freshness token")
	ErrStaleRequest        = errors.New("request is outside the freshness window")
)

// FreshnessWindow is how far the decoded token time may drift from the
// server's own now+60.
const FreshnessWindow = 60 * time.Second

// RevealCredential undoes the client's password encoding: hex, then
// base64, then rotate13.
func RevealCredential(encoded string) (string, error) {
	b64, err := hex.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	rotated, err := base64.StdEncoding.DecodeString(string(b64))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	return codec.Rotate13(string(rotated)), nil
}

// FreshnessTime decodes a freshness token back to the skewed unix time the
// client encoded.
func FreshnessTime(token string) (int64, error) {
	s := reverse(codec.Rotate13(token))
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	hexed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFreshness, err)
	}
	digits, err := hex.DecodeString(reverse(string(hexed)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFreshness, err)
	}
	t, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFreshness, err)
	}
	if t < 0 {
		return 0, fmt.Errorf("%w: negative time", ErrMalformedFreshness)
	}
	return t, nil
}

// CheckFreshness rejects tokens whose time is more than FreshnessWindow
// away from now+60.
func CheckFreshness(token string, now time.Time) error {
	t, err := FreshnessTime(token)
	if err != nil {
		return err
	}
	expected := now.Unix() + codec.FreshnessSkew
	drift := t - expected
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(FreshnessWindow/time.Second) {
		return ErrStaleRequest
	}
	return nil
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
