package ai

import (
	"errors"
	"strings"

	"go.uber.org/atomic"
)

// ErrNoCredentials is returned when a pool is built without any usable key.
var ErrNoCredentials = errors.New("no api credentials configured")

// CredentialPool is an ordered set of API keys with one current index. The
// index only moves through Rotate/RotateFrom, wrapping at the end.
type CredentialPool struct {
	keys  []string
	index *atomic.Int64
}

// NewCredentialPool trims and de-duplicates keys, keeping their order.
func NewCredentialPool(keys []string) (*CredentialPool, error) {
	seen := make(map[string]struct{}, len(keys))
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		cleaned = append(cleaned, k)
	}
	if len(cleaned) == 0 {
		return nil, ErrNoCredentials
	}
	return &CredentialPool{keys: cleaned, index: atomic.NewInt64(0)}, nil
}

// Size is the number of distinct keys.
func (p *CredentialPool) Size() int {
	return len(p.keys)
}

// Current returns the active index and key.
func (p *CredentialPool) Current() (int, string) {
	i := int(p.index.Load())
	return i, p.keys[i]
}

// Rotate advances to the next key and returns the new index.
func (p *CredentialPool) Rotate() int {
	n := int64(len(p.keys))
	for {
		old := p.index.Load()
		next := (old + 1) % n
		if p.index.CompareAndSwap(old, next) {
			return int(next)
		}
	}
}

// RotateFrom advances past observed only if it is still current. When another
// caller already rotated away from observed, the index is left alone and the
// current one is returned.
func (p *CredentialPool) RotateFrom(observed int) int {
	next := (observed + 1) % len(p.keys)
	if p.index.CompareAndSwap(int64(observed), int64(next)) {
		return next
	}
	return int(p.index.Load())
}
