package locking

import (
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMetrics struct {
	mu          sync.Mutex
	requests    map[string]int
	unlocks     int
	expired     int
	reloadsOK   int
	reloadsFail int
	active      int
	policies    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{requests: map[string]int{}}
}

func (m *recordingMetrics) IncrLockRequest(objectName, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[objectName+":"+outcome]++
}

func (m *recordingMetrics) IncrUnlock(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocks++
}

func (m *recordingMetrics) IncrExpired(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired += count
}

func (m *recordingMetrics) IncrPolicyReload(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.reloadsOK++
	} else {
		m.reloadsFail++
	}
}

func (m *recordingMetrics) SetActiveLocks(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = count
}

func (m *recordingMetrics) SetPolicies(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = count
}

func (m *recordingMetrics) snapshot() recordingMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	requests := make(map[string]int, len(m.requests))
	for k, v := range m.requests {
		requests[k] = v
	}
	return recordingMetrics{
		requests:    requests,
		unlocks:     m.unlocks,
		expired:     m.expired,
		reloadsOK:   m.reloadsOK,
		reloadsFail: m.reloadsFail,
		active:      m.active,
		policies:    m.policies,
	}
}
