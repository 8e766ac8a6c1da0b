// Package cache memoises compiled programs across Evaluate calls (spec §2
// DOMAIN STACK "golang.org/x/crypto/blake2b" / "golang.org/x/sync/
// singleflight"): identical script-mode source skips
// re-lexing/re-analysing/re-generating (interactive REPL turns do not go
// through this cache), and concurrent callers compiling the
// same source collapse onto one in-flight compile rather than racing.
package cache

import (
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"vvm/internal/bytecode"
)

// Key identifies a compiled program by its source text and evaluation mode
// (spec §1 Evaluate(source, mode)).
type Key [32]byte

// KeyOf hashes source++mode with blake2b-256.
func KeyOf(source, mode string) Key {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(source))
	h.Write([]byte{0}) // separator: an empty mode string must not collide with a source suffix
	h.Write([]byte(mode))
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Cache holds compiled programs keyed by Key, de-duplicating concurrent
// compiles of the same key via singleflight.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*bytecode.Program
	group   singleflight.Group
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]*bytecode.Program)}
}

// Compile returns the cached program for key, compiling it with fn on a
// miss. Concurrent callers racing on the same key block on one another's
// compile rather than each running fn (spec §2 "singleflight collapses
// duplicate concurrent compiles of the same cache key onto one in-flight
// compile").
func (c *Cache) Compile(key Key, fn func() (*bytecode.Program, error)) (*bytecode.Program, error) {
	c.mu.RLock()
	if prog, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return prog, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(hex.EncodeToString(key[:]), func() (interface{}, error) {
		c.mu.RLock()
		if prog, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return prog, nil
		}
		c.mu.RUnlock()

		prog, err := fn()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = prog
		c.mu.Unlock()
		return prog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bytecode.Program), nil
}
