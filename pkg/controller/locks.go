package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// LockView is the JSON rendering of a held lock.
type LockView struct {
	ObjectName     string    `json:"object_name"`
	ObjectID       string    `json:"object_id"`
	Holder         string    `json:"holder"`
	Since          time.Time `json:"since"`
	ExpiresAt      time.Time `json:"expires_at"`
	TimeoutSeconds int64     `json:"timeout_seconds"`
}

// PolicyView is the JSON rendering of a lock policy.
type PolicyView struct {
	ObjectName     string `json:"object_name"`
	Enabled        bool   `json:"enabled"`
	TimeoutSeconds int64  `json:"timeout_seconds"`
}

// LockStatusView answers GET /locks/{object}/{id}.
type LockStatusView struct {
	Status string    `json:"status"`
	Lock   *LockView `json:"lock,omitempty"`
}

func newLockView(info locking.LockInfo) LockView {
	return LockView{
		ObjectName:     info.Key.ObjectName,
		ObjectID:       info.Key.ObjectID,
		Holder:         info.Holder,
		Since:          info.Since,
		ExpiresAt:      info.ExpiresAt(),
		TimeoutSeconds: info.TimeoutSeconds(),
	}
}

func newPolicyViews(policies []locking.Policy) []PolicyView {
	views := make([]PolicyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, PolicyView{
			ObjectName:     p.ObjectName,
			Enabled:        p.Enabled,
			TimeoutSeconds: int64(p.Timeout / time.Second),
		})
	}
	return views
}

// LockController exposes the lock manager for operators: listing locks,
// force-unlocking, sweeping and reloading policies.
type LockController struct {
	manager *locking.Manager
}

// NewLockController creates a LockController.
func NewLockController(manager *locking.Manager) *LockController {
	return &LockController{manager: manager}
}

// Register mounts the lock routes on r.
func (lc *LockController) Register(r router.Router) {
	r.Handle(http.MethodGet, "/locks", lc.ListLocks)
	r.Handle(http.MethodGet, "/locks/{object}/{id}", lc.GetLock)
	r.Handle(http.MethodDelete, "/locks/{object}/{id}", lc.Unlock)
	r.Handle(http.MethodPost, "/locks/expire", lc.ExpireLocks)
	r.Handle(http.MethodGet, "/policies", lc.ListPolicies)
	r.Handle(http.MethodPost, "/policies/reload", lc.ReloadPolicies)
}

// ListLocks returns all live locks, optionally filtered by ?object=.
func (lc *LockController) ListLocks(c router.Context) error {
	object := strings.TrimSpace(c.Query("object"))
	views := []LockView{}
	for _, info := range lc.manager.GetCurrentLocks() {
		if object != "" && info.Key.ObjectName != object {
			continue
		}
		views = append(views, newLockView(info))
	}
	return Success(c, views)
}

// GetLock reports the lock state of one object.
func (lc *LockController) GetLock(c router.Context) error {
	switch result := lc.manager.GetLockInfo(c.Request().Context(), c.Param("object"), c.Param("id")).(type) {
	case locking.Locked:
		view := newLockView(result.Info)
		return Success(c, LockStatusView{Status: "locked", Lock: &view})
	case locking.Unlocked:
		return Success(c, LockStatusView{Status: "unlocked"})
	case locking.NotSupported:
		return Error(c, notSupported(result.ObjectName))
	default:
		return Error(c, errors.New("unexpected lock status"))
	}
}

// Unlock force-releases a lock. Unlocking an object that is not locked succeeds.
func (lc *LockController) Unlock(c router.Context) error {
	lc.manager.Unlock(c.Request().Context(), c.Param("object"), c.Param("id"))
	return NoContent(c)
}

// ExpireLocks runs the expiry sweep and reports how many locks it removed.
func (lc *LockController) ExpireLocks(c router.Context) error {
	return Success(c, map[string]int{"removed": lc.manager.ExpireLocks()})
}

// ListPolicies returns the active policies.
func (lc *LockController) ListPolicies(c router.Context) error {
	return Success(c, newPolicyViews(lc.manager.Policies()))
}

// ReloadPolicies reloads policies from the configured source.
func (lc *LockController) ReloadPolicies(c router.Context) error {
	if err := lc.manager.ReloadConfiguration(c.Request().Context()); err != nil {
		if errors.Is(err, locking.ErrInvalidPolicy) || errors.Is(err, locking.ErrDuplicatePolicy) {
			return Error(c, err)
		}
		return Error(c, NewUnavailableError("policy reload failed", err))
	}
	return Success(c, newPolicyViews(lc.manager.Policies()))
}

func notSupported(objectName string) *AppError {
	return NewNotFoundError("locking.not_supported", "locking is not enabled for "+objectName,
		map[string]any{"object_name": objectName})
}
