// Package signing produces URL-safe tokens of the form
// base64url(JSON payload) "." hex(HMAC-SHA256). Each Signer mixes a salt into
// its key so tokens minted for one purpose are rejected by another.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMalformed    = errors.New("malformed signed token")
	ErrBadSignature = errors.New("signature mismatch")
	ErrExpired      = errors.New("signed token expired")
)

type envelope struct {
	Data      json.RawMessage `json:"d"`
	ExpiresAt int64           `json:"e,omitempty"`
}

type Signer struct {
	key []byte
	Now func() time.Time
}

func New(secret, salt string) *Signer {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("signer:" + salt))
	return &Signer{key: mac.Sum(nil), Now: time.Now}
}

// Sign encodes v without an expiry.
func (s *Signer) Sign(v interface{}) (string, error) {
	return s.sign(v, 0)
}

// SignExpiring encodes v and rejects it in Unsign once ttl has passed.
func (s *Signer) SignExpiring(v interface{}, ttl time.Duration) (string, error) {
	return s.sign(v, s.Now().Add(ttl).Unix())
}

func (s *Signer) sign(v interface{}, expiresAt int64) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	raw, err := json.Marshal(envelope{Data: data, ExpiresAt: expiresAt})
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw) + "." + s.mac(raw), nil
}

// Unsign verifies token and decodes its payload into v.
func (s *Signer) Unsign(token string, v interface{}) error {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(token[:idx])
	if err != nil {
		return ErrMalformed
	}
	if !hmac.Equal([]byte(s.mac(raw)), []byte(token[idx+1:])) {
		return ErrBadSignature
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ErrMalformed
	}
	if env.ExpiresAt != 0 && s.Now().Unix() > env.ExpiresAt {
		return ErrExpired
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return ErrMalformed
	}
	return nil
}

func (s *Signer) mac(data []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
