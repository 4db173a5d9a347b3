package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"oggo/connector"
	"oggo/connstring"
)

// role is the cached read/write posture of a host.
type role int

const (
	roleUnknown role = iota
	rolePrimary
	roleStandby
	roleOffline
)

// hostEntry tracks one host+port's role and health within one pool's
// hostSet, mutated under lock. Entries are not shared between pools: each
// pool probes and caches its hosts' roles on its own.
type hostEntry struct {
	mu        sync.Mutex
	host      connstring.HostSpec
	role      role
	checkedAt time.Time
	offlineAt time.Time
}

// hostSet tracks role state for every host a pool's connection string
// names, and probes lazily on rent per HostRecheckSeconds.
type hostSet struct {
	mu      sync.Mutex
	entries map[string]*hostEntry
	group   singleflight.Group
	round   int // round-robin cursor for LoadBalanceHosts
}

func newHostSet(hosts []connstring.HostSpec) *hostSet {
	hs := &hostSet{entries: make(map[string]*hostEntry, len(hosts))}
	for _, h := range hosts {
		hs.entries[hostKey(h)] = &hostEntry{host: h}
	}
	return hs
}

func hostKey(h connstring.HostSpec) string {
	return h.Host + ":" + itoa(h.Port)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// markOffline records a connection-refused failure for host: a
// connection-refused marks it Offline for HostRecheckSeconds.
func (hs *hostSet) markOffline(h connstring.HostSpec) {
	hs.mu.Lock()
	e, ok := hs.entries[hostKey(h)]
	hs.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.role = roleOffline
	e.offlineAt = time.Now()
	e.mu.Unlock()
}

// candidates returns hosts eligible for target in preference order,
// applying the round-robin cursor when loadBalance is set.
func (hs *hostSet) candidates(cfg *connstring.Config) []connstring.HostSpec {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	all := make([]connstring.HostSpec, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		e := hs.entries[hostKey(h)]
		if e != nil {
			e.mu.Lock()
			offline := e.role == roleOffline && time.Since(e.offlineAt) < time.Duration(cfg.HostRecheckSeconds)*time.Second
			e.mu.Unlock()
			if offline {
				continue
			}
		}
		all = append(all, h)
	}
	if len(all) == 0 {
		all = cfg.Hosts
	}
	if cfg.LoadBalanceHosts && len(all) > 1 {
		hs.round = (hs.round + 1) % len(all)
		rotated := make([]connstring.HostSpec, len(all))
		for i := range all {
			rotated[i] = all[(hs.round+i)%len(all)]
		}
		return rotated
	}
	return all
}

// matches reports whether host's cached role satisfies target, probing via
// probe if the cache is stale or unknown. Errors from the probe leave
// the role unknown: such a host stays eligible for any, prefer-primary and
// prefer-standby targets, but not for primary or standby.
func (hs *hostSet) matches(ctx context.Context, cfg *connstring.Config, h connstring.HostSpec, target connstring.TargetSessionAttributes, dial func(context.Context, connstring.HostSpec) (*connector.Connector, error)) bool {
	target = target.Normalize()
	if target == connstring.TargetAny {
		return true
	}

	hs.mu.Lock()
	e, ok := hs.entries[hostKey(h)]
	hs.mu.Unlock()
	if !ok {
		return true
	}

	e.mu.Lock()
	stale := cfg.HostRecheckSeconds == 0 || e.role == roleUnknown || time.Since(e.checkedAt) > time.Duration(cfg.HostRecheckSeconds)*time.Second
	current := e.role
	e.mu.Unlock()

	if stale {
		current = hs.probe(ctx, h, dial)
	}

	switch target {
	case connstring.TargetPrimary:
		return current == rolePrimary
	case connstring.TargetStandby:
		return current == roleStandby
	case connstring.TargetPreferPrimary:
		return current != roleStandby
	case connstring.TargetPreferStandby:
		return current != rolePrimary
	default:
		return true
	}
}

// probe issues "SHOW transaction_read_only" on a short-lived connector,
// coalescing concurrent probes of the same host via singleflight so that
// N renters racing a stale cache entry produce one probe query.
func (hs *hostSet) probe(ctx context.Context, h connstring.HostSpec, dial func(context.Context, connstring.HostSpec) (*connector.Connector, error)) role {
	key := hostKey(h)
	v, _, _ := hs.group.Do(key, func() (interface{}, error) {
		r := hs.doProbe(ctx, h, dial)
		hs.mu.Lock()
		e := hs.entries[key]
		hs.mu.Unlock()
		if e != nil {
			e.mu.Lock()
			e.role = r
			e.checkedAt = time.Now()
			e.mu.Unlock()
		}
		return r, nil
	})
	if r, ok := v.(role); ok {
		return r
	}
	return roleUnknown
}

func (hs *hostSet) doProbe(ctx context.Context, h connstring.HostSpec, dial func(context.Context, connstring.HostSpec) (*connector.Connector, error)) role {
	c, err := dial(ctx, h)
	if err != nil {
		return roleUnknown
	}
	defer c.Terminate()

	stream, err := c.Execute(ctx, "SHOW transaction_read_only", nil, 5*time.Second)
	if err != nil {
		return roleUnknown
	}
	readOnly := ""
	for stream.Next() {
		if row := stream.Row(); row != nil && len(row.Values) > 0 {
			readOnly = string(row.Values[0])
		}
	}
	if stream.Err() != nil {
		return roleUnknown
	}
	if readOnly == "on" {
		return roleStandby
	}
	return rolePrimary
}
