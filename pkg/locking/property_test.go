package locking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: however many actors race for one key, exactly one acquires it
// and every loser is told that winner's identity.
func TestProperty_SingleHolderUnderContention(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("exactly one concurrent caller acquires a key", prop.ForAll(
		func(callers int, id string) bool {
			clock := newFakeClock()
			m := newPropertyManager(clock)

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				acquired int
				holders  = map[string]struct{}{}
			)
			start := make(chan struct{})
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(actor string) {
					defer wg.Done()
					<-start
					res := m.Lock(WithActor(context.Background(), actor), "Order", id)
					mu.Lock()
					defer mu.Unlock()
					switch r := res.(type) {
					case Acquired:
						acquired++
						holders[actor] = struct{}{}
					case Locked:
						holders[r.Info.Holder] = struct{}{}
					}
				}(fmt.Sprintf("actor-%d", i))
			}
			close(start)
			wg.Wait()

			return acquired == 1 && len(holders) == 1 && m.LockCount() == 1
		},
		gen.IntRange(1, 32),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

// Property: a lock taken at t0 with timeout T is live for queries in
// [t0, t0+T) and gone from t0+T onwards.
func TestProperty_ExpiryBoundary(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("lock state depends only on elapsed time versus timeout", prop.ForAll(
		func(timeoutMillis int, elapsedMillis int) bool {
			clock := newFakeClock()
			timeout := time.Duration(timeoutMillis) * time.Millisecond
			policies, _ := NewPolicyResolver(StaticSource{{ObjectName: "Order", Enabled: true, Timeout: timeout}})
			m, _ := NewManager(policies, WithClock(clock))
			ctx := WithActor(context.Background(), "alice")
			if err := m.ReloadConfiguration(ctx); err != nil {
				return false
			}

			m.Lock(ctx, "Order", "42")
			clock.Advance(time.Duration(elapsedMillis) * time.Millisecond)

			status := m.GetLockInfo(ctx, "Order", "42")
			if elapsedMillis < timeoutMillis {
				_, ok := status.(Locked)
				return ok
			}
			_, ok := status.(Unlocked)
			return ok
		},
		gen.IntRange(1, 10_000),
		gen.IntRange(0, 20_000),
	))

	properties.Property("another actor acquires exactly when the lock expires", prop.ForAll(
		func(timeoutMillis int, elapsedMillis int) bool {
			clock := newFakeClock()
			table := NewTable(TableConfig{Clock: clock})
			key := NewLockKey("Order", "42")
			timeout := time.Duration(timeoutMillis) * time.Millisecond

			table.TryAcquire(key, "alice", timeout)
			clock.Advance(time.Duration(elapsedMillis) * time.Millisecond)

			info, ok := table.TryAcquire(key, "bob", timeout)
			if elapsedMillis < timeoutMillis {
				return !ok && info.Holder == "alice"
			}
			return ok && info.Holder == "bob"
		},
		gen.IntRange(1, 10_000),
		gen.IntRange(0, 20_000),
	))

	properties.TestingRun(t)
}

// Property: a sweep removes exactly the expired entries and nothing else.
func TestProperty_SweepRemovesOnlyExpired(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("sweep count matches expired entries", prop.ForAll(
		func(timeouts []int, elapsed int) bool {
			clock := newFakeClock()
			table := NewTable(TableConfig{Shards: 4, Clock: clock})

			wantExpired := 0
			for i, ms := range timeouts {
				table.TryAcquire(NewLockKey("Order", fmt.Sprint(i)), "alice", time.Duration(ms)*time.Millisecond)
				if elapsed >= ms {
					wantExpired++
				}
			}
			clock.Advance(time.Duration(elapsed) * time.Millisecond)

			removed := table.SweepExpired(clock.Now())
			return removed == wantExpired &&
				table.Len() == len(timeouts)-wantExpired &&
				len(table.Snapshot()) == table.Len()
		},
		gen.SliceOf(gen.IntRange(1, 1000)),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func newPropertyManager(clock Clock) *Manager {
	policies, _ := NewPolicyResolver(StaticSource{{ObjectName: "Order", Enabled: true, Timeout: time.Minute}})
	m, _ := NewManager(policies, WithClock(clock))
	_ = m.ReloadConfiguration(context.Background())
	return m
}
