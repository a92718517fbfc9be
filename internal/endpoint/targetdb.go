package endpoint

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwidauer/mavlink-shouter/internal/mavlink"
)

// target is one learned peer. lastSeen is atomic so the read-locked fast path
// of InsertOrUpdate can refresh it without taking the write lock.
type target struct {
	id       mavlink.SysCompID
	addr     net.Addr
	lastSeen atomic.Int64
}

func (t *target) touch(now time.Time) {
	t.lastSeen.Store(now.UnixNano())
}

func (t *target) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.UnixNano()-t.lastSeen.Load() > int64(ttl)
}

// TargetDatabase is an endpoint's learned mapping from observed senders to
// peer addresses. Reads vastly outnumber writes: every fan-out delivery scans
// it, while writes happen only when a new sender appears or a known sender
// moves to a new address.
//
// Entries are kept as a flat list rather than a map because retrieval is not
// an exact lookup: broadcast targets have to match many entries, so every
// lookup is a predicate scan anyway, and endpoints see tens of peers at most.
type TargetDatabase struct {
	mu      sync.RWMutex
	targets []*target
	ttl     time.Duration
	now     func() time.Time
}

// NewTargetDatabase creates a database whose entries idle out after ttl.
// A ttl of 0 keeps entries forever.
func NewTargetDatabase(ttl time.Duration) *TargetDatabase {
	return &TargetDatabase{ttl: ttl, now: time.Now}
}

// InsertOrUpdate records addr as the current address of sender. The common
// case, a frame from an already known sender at an unchanged address, takes
// only the read lock; the write lock is taken when the entry is new or its
// address changed, re-checking under the upgraded lock before mutating.
func (db *TargetDatabase) InsertOrUpdate(sender mavlink.SysCompID, addr net.Addr) {
	now := db.now()

	db.mu.RLock()
	if t := findTarget(db.targets, sender); t != nil && sameAddr(t.addr, addr) {
		t.touch(now)
		db.mu.RUnlock()
		return
	}
	db.mu.RUnlock()

	db.mu.Lock()
	defer db.mu.Unlock()
	db.prune(now)
	if t := findTarget(db.targets, sender); t != nil {
		t.addr = addr
		t.touch(now)
		return
	}
	t := &target{id: sender, addr: addr}
	t.touch(now)
	db.targets = append(db.targets, t)
}

// TargetAddresses returns the address of every learned peer the routing info
// addresses, excluding the frame's own sender.
func (db *TargetDatabase) TargetAddresses(ri mavlink.RoutingInfo) []net.Addr {
	now := db.now()

	db.mu.RLock()
	defer db.mu.RUnlock()
	var addrs []net.Addr
	for _, t := range db.targets {
		if t.expired(now, db.ttl) {
			continue
		}
		if ri.Matches(t.id) {
			addrs = append(addrs, t.addr)
		}
	}
	return addrs
}

// Lookup returns the address learned for an exact SysCompID.
func (db *TargetDatabase) Lookup(id mavlink.SysCompID) (net.Addr, bool) {
	now := db.now()

	db.mu.RLock()
	defer db.mu.RUnlock()
	if t := findTarget(db.targets, id); t != nil && !t.expired(now, db.ttl) {
		return t.addr, true
	}
	return nil, false
}

// Len returns the number of live entries.
func (db *TargetDatabase) Len() int {
	now := db.now()

	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, t := range db.targets {
		if !t.expired(now, db.ttl) {
			n++
		}
	}
	return n
}

// LearnedTarget is a snapshot of one database entry.
type LearnedTarget struct {
	ID       mavlink.SysCompID `json:"id"`
	Address  string            `json:"address"`
	LastSeen time.Time         `json:"last_seen"`
}

// Snapshot returns a copy of all live entries, for introspection.
func (db *TargetDatabase) Snapshot() []LearnedTarget {
	now := db.now()

	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]LearnedTarget, 0, len(db.targets))
	for _, t := range db.targets {
		if t.expired(now, db.ttl) {
			continue
		}
		out = append(out, LearnedTarget{
			ID:       t.id,
			Address:  t.addr.String(),
			LastSeen: time.Unix(0, t.lastSeen.Load()),
		})
	}
	return out
}

// prune drops expired entries. Caller holds the write lock.
func (db *TargetDatabase) prune(now time.Time) {
	if db.ttl <= 0 {
		return
	}
	live := db.targets[:0]
	for _, t := range db.targets {
		if !t.expired(now, db.ttl) {
			live = append(live, t)
		}
	}
	db.targets = live
}

func findTarget(targets []*target, id mavlink.SysCompID) *target {
	for _, t := range targets {
		if t.id == id {
			return t
		}
	}
	return nil
}

func sameAddr(a, b net.Addr) bool {
	return a.Network() == b.Network() && a.String() == b.String()
}
