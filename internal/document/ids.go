package document

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// randomID returns a URL-safe random identifier of n bytes of entropy
// (base64url encoded, so len = ceil(n*4/3)).
func randomID(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newDocumentID yields ~12 URL-safe characters, enough to make collisions
// negligible at this service's scale.
func newDocumentID() (string, error) { return randomID(9) }

func newVersionID() (string, error) { return randomID(9) }

// newRawKey yields the rotating raw-access credential for private
// documents. Longer than document IDs since it is a secret, not a name.
func newRawKey() (string, error) { return randomID(18) }

// contentHash is the integrity fingerprint stored with each version:
// hex SHA-256 over the content bytes.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
