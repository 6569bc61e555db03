// Package session implements the signed cookie token: a base64url JSON
// payload and an HMAC-SHA256 signature joined by a single dot. Integrity
// only; the payload is readable by anyone holding the cookie.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// CookieName is the cookie the token travels in.
const CookieName = "msu_life_session"

// Payload is the identity snapshot embedded in a token. Fields are frozen
// at issuance; a role change only shows up after re-login.
type Payload struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Exp   int64  `json:"exp"`
}

// Codec signs and verifies session tokens with a server secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret []byte, ttl time.Duration) *Codec {
	return &Codec{secret: secret, ttl: ttl, now: time.Now}
}

// TTL returns the configured session lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Sign serializes the identity with exp = now + TTL and returns
// "payload.signature".
func (c *Codec) Sign(uid, email, role string) (string, error) {
	payload := Payload{
		UID:   uid,
		Email: email,
		Role:  role,
		Exp:   c.now().Add(c.ttl).Unix(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + c.sign(encoded), nil
}

// Verify checks the signature and expiry of a token and returns the
// embedded payload. The signature comparison is constant-time.
func (c *Codec) Verify(token string) (*Payload, bool) {
	encoded, signature, found := strings.Cut(token, ".")
	if !found || strings.Contains(signature, ".") {
		return nil, false
	}

	if !hmac.Equal([]byte(signature), []byte(c.sign(encoded))) {
		return nil, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	if payload.Exp < c.now().Unix() {
		return nil, false
	}
	return &payload, true
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
