// AngelaMos | 2026
// hash_test.go

package ban

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasherDeterministic(t *testing.T) {
	h := NewHasher("salt-a")

	assert.Equal(t, h.HashEmail("a@b.com"), h.HashEmail("a@b.com"))
	assert.Equal(t, h.HashIP("10.0.0.1"), h.HashIP("10.0.0.1"))
}

func TestHasherNormalizesEmail(t *testing.T) {
	h := NewHasher("salt-a")

	assert.Equal(t, h.HashEmail("a@b.com"), h.HashEmail("  A@B.COM  "))
}

func TestHasherSaltSeparatesDeployments(t *testing.T) {
	a := NewHasher("salt-a")
	b := NewHasher("salt-b")

	assert.NotEqual(t, a.HashEmail("a@b.com"), b.HashEmail("a@b.com"))
	assert.NotEqual(t, a.HashIP("10.0.0.1"), b.HashIP("10.0.0.1"))
}

func TestHasherDigestShape(t *testing.T) {
	h := NewHasher("salt-a")

	digest := h.HashEmail("a@b.com")
	assert.Len(t, digest, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", digest)
	assert.NotContains(t, digest, "a@b.com")
}
