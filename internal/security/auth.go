package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrRequestExpired   = errors.New("request timestamp expired or too far in future")
	ErrInvalidAPIKey    = errors.New("invalid API key")
)

// MaxClockDrift is how far a signed request's timestamp may be from now.
const MaxClockDrift = 5 * time.Minute

// Sign returns the hex HMAC-SHA256 of method + path + body + timestamp.
func Sign(secret, method, path, body, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method + path + body + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a request signed with Sign. timestamp is the Unix time
// from X-Timestamp and signature the hex digest from X-Signature. An empty
// secret disables the check.
func VerifyHMAC(secret, method, path, body, timestamp, signature string) error {
	if secret == "" {
		return nil
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	drift := time.Since(time.Unix(ts, 0))
	if drift < -MaxClockDrift || drift > MaxClockDrift {
		return ErrRequestExpired
	}

	expected := Sign(secret, method, path, body, timestamp)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// HashAPIKey returns the bcrypt hash to configure as API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAPIKey compares key against a bcrypt hash. An empty hash disables
// the check.
func VerifyAPIKey(hash, key string) error {
	if hash == "" {
		return nil
	}
	if key == "" {
		return ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}
