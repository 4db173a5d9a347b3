package pool

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"oggo/connstring"
)

// registry is the process-wide pool set keyed by connection string:
// created on first use per unique connection string, never destroyed
// during process lifetime. Mirrors the pattern of a lazily-initialized
// global registry that must tolerate re-entrancy from counter polling.
var registry = struct {
	mu    sync.Mutex
	pools map[string]*Pool
}{pools: map[string]*Pool{}}

// Get returns the pool for cfg, creating one on first use. The key is a
// canonical rendering of cfg's raw keyword-value pairs, so two Configs
// parsed from the same DSN (regardless of key ordering or casing) share
// one pool.
func Get(cfg *connstring.Config) *Pool {
	key := canonicalKey(cfg)

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if p, ok := registry.pools[key]; ok {
		return p
	}
	p := New(cfg)
	registry.pools[key] = p
	return p
}

// Count returns the number of distinct pools currently registered, the
// basis for the "connection-pools count" event counter.
func Count() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.pools)
}

func canonicalKey(cfg *connstring.Config) string {
	raw := cfg.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", strings.ToLower(k), raw[k])
	}
	return b.String()
}
