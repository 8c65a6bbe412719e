// Package password derives and verifies salted, peppered password digests
// using scrypt. The pepper is a server-wide secret appended to the password
// before derivation and is never stored alongside the hash, so a leaked
// data file alone is not enough to mount an offline attack.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters and output sizes.
const (
	scryptN    = 1 << 14
	scryptR    = 8
	scryptP    = 1
	saltLength = 16
	keyLength  = 64

	AlgorithmScrypt = "scrypt"
)

// Hash holds a derived password digest. Salt and Key are raw bytes; they
// are persisted base64url-encoded (see MarshalJSON).
type Hash struct {
	Algorithm string
	Salt      []byte
	Key       []byte
}

type hashJSON struct {
	Algo string `json:"algo"`
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// MarshalJSON encodes salt and key as unpadded base64url, the on-disk form.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(hashJSON{
		Algo: h.Algorithm,
		Salt: Encode(h.Salt),
		Hash: Encode(h.Key),
	})
}

// UnmarshalJSON decodes the on-disk form. Decode failures surface as errors
// here; Verify treats any malformed hash as a non-match.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var raw hashJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	salt, err := Decode(raw.Salt)
	if err != nil {
		return errors.Wrap(err, "[Hash.UnmarshalJSON] salt")
	}
	key, err := Decode(raw.Hash)
	if err != nil {
		return errors.Wrap(err, "[Hash.UnmarshalJSON] hash")
	}
	h.Algorithm = raw.Algo
	h.Salt = salt
	h.Key = key
	return nil
}

// Hasher derives and verifies password hashes with a fixed pepper.
type Hasher struct {
	pepper []byte
}

// NewHasher creates a Hasher. An empty pepper is allowed but weakens the
// hash to salt-only scrypt.
func NewHasher(pepper []byte) *Hasher {
	return &Hasher{pepper: pepper}
}

// Hash derives a fresh digest for the given password with a random salt.
func (h *Hasher) Hash(password string) (Hash, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return Hash{}, errors.Wrap(err, "[Hasher.Hash] rand.Read")
	}
	key, err := h.derive(password, salt)
	if err != nil {
		return Hash{}, err
	}
	return Hash{Algorithm: AlgorithmScrypt, Salt: salt, Key: key}, nil
}

// Verify recomputes the derivation with the stored salt and compares it to
// the stored key in constant time. Any malformed stored hash verifies as
// false rather than surfacing an error.
func (h *Hasher) Verify(password string, stored Hash) bool {
	if stored.Algorithm != AlgorithmScrypt {
		return false
	}
	if len(stored.Salt) == 0 || len(stored.Key) != keyLength {
		return false
	}
	key, err := h.derive(password, stored.Salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, stored.Key) == 1
}

func (h *Hasher) derive(password string, salt []byte) ([]byte, error) {
	peppered := append([]byte(password), h.pepper...)
	key, err := scrypt.Key(peppered, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Hasher.derive] scrypt.Key")
	}
	return key, nil
}

// Encode returns the base64url (unpadded) encoding used for persisted salts
// and keys.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
