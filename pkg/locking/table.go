package locking

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultShards is the number of independently locked partitions of a Table.
	DefaultShards = 32
	// MaxShards caps the partition count.
	MaxShards = 4096
)

// TableConfig configures a Table.
type TableConfig struct {
	// Shards is rounded up to a power of two. Zero selects DefaultShards.
	Shards  int
	Clock   Clock
	Metrics Metrics
}

// Table stores live locks keyed by LockKey.
//
// Keys are spread over shards by hash; every operation on one key runs under
// that key's shard mutex, so concurrent acquisitions of the same key have
// exactly one winner while different shards proceed in parallel.
type Table struct {
	shards []*tableShard
	mask   uint64
	size   atomic.Int64

	clock   Clock
	metrics Metrics
}

type tableShard struct {
	mu    sync.Mutex
	locks map[LockKey]LockInfo
}

// NewTable creates an empty lock table.
func NewTable(cfg TableConfig) *Table {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}

	count := normalizeShards(cfg.Shards)
	shards := make([]*tableShard, count)
	for i := range shards {
		shards[i] = &tableShard{locks: make(map[LockKey]LockInfo)}
	}

	return &Table{
		shards:  shards,
		mask:    uint64(count - 1),
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
	}
}

func normalizeShards(n int) int {
	if n <= 0 {
		return DefaultShards
	}
	if n > MaxShards {
		return MaxShards
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

func (t *Table) shardFor(key LockKey) *tableShard {
	h := xxhash.Sum64String(key.ObjectName + "\x00" + key.ObjectID)
	return t.shards[h&t.mask]
}

// TryAcquire inserts a lock for key unless a live one exists.
// On success it returns the new lock and true. On conflict it returns a copy
// of the existing lock and false, leaving the table untouched.
// An expired lock still stored under key is discarded and replaced.
func (t *Table) TryAcquire(key LockKey, holder string, timeout time.Duration) (LockInfo, bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.clock.Now()
	if current, ok := s.locks[key]; ok {
		if !current.ExpiredAt(now) {
			return current, false
		}
		t.metrics.IncrExpired(1)
	} else {
		t.size.Add(1)
	}

	info := LockInfo{
		Key:     key,
		Holder:  holder,
		Since:   now,
		Timeout: timeout,
	}
	s.locks[key] = info
	return info, true
}

// Release removes the lock for key. It is a no-op for absent keys and
// reports whether a live lock was removed.
func (t *Table) Release(key LockKey) (LockInfo, bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.locks[key]
	if !ok {
		return LockInfo{}, false
	}
	delete(s.locks, key)
	t.size.Add(-1)

	if current.ExpiredAt(t.clock.Now()) {
		t.metrics.IncrExpired(1)
		return LockInfo{}, false
	}
	return current, true
}

// Lookup returns the live lock for key. An expired lock found on the way is evicted.
func (t *Table) Lookup(key LockKey) (LockInfo, bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.locks[key]
	if !ok {
		return LockInfo{}, false
	}
	if current.ExpiredAt(t.clock.Now()) {
		delete(s.locks, key)
		t.size.Add(-1)
		t.metrics.IncrExpired(1)
		return LockInfo{}, false
	}
	return current, true
}

// SweepExpired removes every lock expired at now and returns how many were removed.
func (t *Table) SweepExpired(now time.Time) int {
	removed := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for key, info := range s.locks {
			if info.ExpiredAt(now) {
				delete(s.locks, key)
				removed++
			}
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		t.size.Add(int64(-removed))
		t.metrics.IncrExpired(removed)
	}
	return removed
}

// Snapshot returns copies of all live locks ordered by object name, id and acquisition time.
func (t *Table) Snapshot() []LockInfo {
	now := t.clock.Now()
	out := make([]LockInfo, 0, t.Len())
	for _, s := range t.shards {
		s.mu.Lock()
		for _, info := range s.locks {
			if !info.ExpiredAt(now) {
				out = append(out, info)
			}
		}
		s.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Key.ObjectName != b.Key.ObjectName {
			return a.Key.ObjectName < b.Key.ObjectName
		}
		if a.Key.ObjectID != b.Key.ObjectID {
			return a.Key.ObjectID < b.Key.ObjectID
		}
		return a.Since.Before(b.Since)
	})
	return out
}

// Len returns the number of stored locks, including expired ones not yet swept.
func (t *Table) Len() int {
	return int(t.size.Load())
}
