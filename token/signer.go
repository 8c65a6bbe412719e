// Package token produces and validates tamper-evident string tokens using a
// keyed MAC. Tokens carry their value in the clear; the MAC only proves the
// value was issued by this server.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// secret length used when generating a fresh signing secret.
const secretLength = 32

// HMACSigner signs values with HMAC-SHA256 using a server-wide secret.
// Tokens have the form "<value>.<base64url-mac>" (unpadded). The secret must
// stay stable across restarts for outstanding tokens to keep validating.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a signer with the given secret.
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret)}
}

// NewSecret generates a fresh urlsafe signing secret. Deployments should
// supply the secret externally instead: a secret generated at process start
// invalidates every outstanding token on restart.
func NewSecret() (string, error) {
	b := make([]byte, secretLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[NewSecret] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Sign returns value with its MAC appended after a dot separator.
func (s *HMACSigner) Sign(value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(s.mac(value))
}

// Verify splits the token on its last dot, recomputes the MAC over the value
// portion and compares in constant time. Any parse failure returns ("", false).
func (s *HMACSigner) Verify(token string) (string, bool) {
	i := strings.LastIndex(token, ".")
	if i < 0 {
		return "", false
	}
	value, sig := token[:i], token[i+1:]
	mac, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(mac, s.mac(value)) {
		return "", false
	}
	return value, true
}

func (s *HMACSigner) mac(value string) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(value))
	return m.Sum(nil)
}
