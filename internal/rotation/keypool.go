// Package rotation spreads remote calls over a pool of API credentials and
// fails over to the next credential when one reports quota exhaustion.
package rotation

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// KeyPool is an ordered, immutable list of credentials with a wrapping cursor.
// Keys are never evicted; a key that hit its quota is only skipped for the
// current attempt sequence.
type KeyPool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

type PoolOption func(*KeyPool)

// RandomStart starts the cursor at a random index so several processes
// sharing the same keys do not all hammer the first one.
func RandomStart() PoolOption {
	return func(p *KeyPool) {
		if len(p.keys) > 1 {
			p.cursor = rand.IntN(len(p.keys))
		}
	}
}

// NewKeyPool copies keys, trimming blanks and dropping empty entries.
func NewKeyPool(keys []string, opts ...PoolOption) *KeyPool {
	p := &KeyPool{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			p.keys = append(p.keys, k)
		}
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *KeyPool) Size() int { return len(p.keys) }

func (p *KeyPool) Empty() bool { return len(p.keys) == 0 }

// Current returns the credential under the cursor and its index.
// It must not be called on an empty pool.
func (p *KeyPool) Current() (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.cursor], p.cursor
}

// Advance moves the cursor to the next key, wrapping.
func (p *KeyPool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.keys)
}

// advanceFrom moves the cursor past idx only if it still points at idx, so two
// calls failing on the same key advance it once instead of skipping a key.
func (p *KeyPool) advanceFrom(idx int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 || p.cursor != idx {
		return false
	}
	p.cursor = (p.cursor + 1) % len(p.keys)
	return true
}
