// AngelaMos | 2026
// hash.go

package ban

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher produces the deterministic salted digests that key the email and IP
// blocklists. Only the 64-char hex digest is ever stored, never plaintext.
type Hasher struct {
	salt string
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

func (h *Hasher) HashEmail(email string) string {
	return h.digest(strings.ToLower(strings.TrimSpace(email)))
}

func (h *Hasher) HashIP(ip string) string {
	return h.digest(strings.TrimSpace(ip))
}

func (h *Hasher) digest(value string) string {
	sum := sha256.Sum256([]byte(h.salt + ":" + value))
	return hex.EncodeToString(sum[:])
}
