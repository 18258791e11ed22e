// Package share implements the signed, time-limited bearer tokens used for
// document share links. A token is base64url("<payload>.<hexsig>") where
// payload is canonical JSON and hexsig is HMAC-SHA256 over the payload.
package share

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Payload is what a share token asserts: access to one document until
// ExpiresAt (epoch milliseconds).
type Payload struct {
	DocumentID string `json:"documentId"`
	ExpiresAt  int64  `json:"expiresAt"`
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// CreateToken serializes and signs the payload.
func CreateToken(p Payload, secret string) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	raw := string(payload) + "." + sign(payload, secret)
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// VerifyToken decodes and checks a token. It returns (payload, true) only
// for a well-formed token with a valid signature and a future expiry.
// Every failure mode returns (zero, false) with no distinction, so callers
// cannot leak why verification failed.
func VerifyToken(token, secret string) (Payload, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, false
	}
	i := strings.LastIndex(string(raw), ".")
	if i < 0 {
		return Payload{}, false
	}
	payload, gotSig := raw[:i], string(raw[i+1:])

	wantSig := sign(payload, secret)
	// hmac.Equal is constant-time; never compare signatures with ==.
	if !hmac.Equal([]byte(gotSig), []byte(wantSig)) {
		return Payload{}, false
	}

	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Payload{}, false
	}
	if p.DocumentID == "" {
		return Payload{}, false
	}
	if time.Now().UnixMilli() >= p.ExpiresAt {
		return Payload{}, false
	}
	return p, true
}
