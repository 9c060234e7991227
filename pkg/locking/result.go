package locking

// LockResult is the outcome of Manager.Lock: one of Acquired, Locked or NotSupported.
type LockResult interface {
	isLockResult()
}

// StatusResult is the outcome of Manager.GetLockInfo: one of Unlocked, Locked or NotSupported.
type StatusResult interface {
	isStatusResult()
}

// Acquired reports that the caller now holds the lock.
type Acquired struct{}

// Unlocked reports that no live lock exists for the object.
type Unlocked struct{}

// Locked carries the lock currently held on the object.
type Locked struct {
	Info LockInfo
}

// NotSupported reports that locking is not configured for the object type.
type NotSupported struct {
	ObjectName string
}

func (Acquired) isLockResult()       {}
func (Locked) isLockResult()         {}
func (NotSupported) isLockResult()   {}
func (Unlocked) isStatusResult()     {}
func (Locked) isStatusResult()       {}
func (NotSupported) isStatusResult() {}

func lockOutcome(r LockResult) string {
	switch r.(type) {
	case Acquired:
		return OutcomeAcquired
	case Locked:
		return OutcomeConflict
	default:
		return OutcomeUnsupported
	}
}
