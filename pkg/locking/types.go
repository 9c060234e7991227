package locking

import (
	"fmt"
	"time"
)

// LockKey identifies a lockable business object by type name and identifier.
type LockKey struct {
	ObjectName string `json:"object_name"`
	ObjectID   string `json:"object_id"`
}

// NewLockKey builds a key for the given object.
func NewLockKey(objectName, objectID string) LockKey {
	return LockKey{ObjectName: objectName, ObjectID: objectID}
}

// String renders the key as "name/id".
func (k LockKey) String() string {
	return fmt.Sprintf("%s/%s", k.ObjectName, k.ObjectID)
}

// LockInfo describes a live lock. It is handed out by value; changing a
// returned LockInfo never affects the table.
type LockInfo struct {
	Key     LockKey       `json:"key"`
	Holder  string        `json:"holder"`
	Since   time.Time     `json:"since"`
	Timeout time.Duration `json:"timeout"`
}

// ExpiresAt is Since plus Timeout.
func (i LockInfo) ExpiresAt() time.Time {
	return i.Since.Add(i.Timeout)
}

// ExpiredAt reports whether the lock is no longer valid at now.
// A lock taken at t0 with timeout T is live on [t0, t0+T).
func (i LockInfo) ExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt())
}

// TimeoutSeconds returns the timeout in whole seconds.
func (i LockInfo) TimeoutSeconds() int64 {
	return int64(i.Timeout / time.Second)
}
