package locking

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Lockable is implemented by entities that know their own lock identity.
type Lockable interface {
	LockObjectName() string
	LockObjectID() string
}

// EntityResolver maps an entity instance to the key it is locked under.
type EntityResolver interface {
	Resolve(entity any) (LockKey, error)
}

// EntityResolverFunc adapts a function to EntityResolver.
type EntityResolverFunc func(entity any) (LockKey, error)

// Resolve calls f.
func (f EntityResolverFunc) Resolve(entity any) (LockKey, error) { return f(entity) }

type entityMeta struct {
	name string
	id   func(entity any) string
}

// MetadataRegistry resolves entities by their registered Go type.
// Entities implementing Lockable resolve without registration.
type MetadataRegistry struct {
	mu    sync.RWMutex
	types map[reflect.Type]entityMeta
}

// NewMetadataRegistry creates an empty registry.
func NewMetadataRegistry() *MetadataRegistry {
	return &MetadataRegistry{types: map[reflect.Type]entityMeta{}}
}

// Register maps the concrete type T to objectName, using id to extract the
// identifier from instances. T and *T are distinct registrations.
func Register[T any](r *MetadataRegistry, objectName string, id func(T) string) error {
	if r == nil {
		return fmt.Errorf("metadata registry is nil")
	}
	if strings.TrimSpace(objectName) == "" {
		return fmt.Errorf("object name is required")
	}
	if id == nil {
		return fmt.Errorf("id extractor is required for %q", objectName)
	}

	t := reflect.TypeFor[T]()
	meta := entityMeta{
		name: objectName,
		id: func(entity any) string {
			return id(entity.(T))
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.types[t]; ok {
		return fmt.Errorf("type %s is already registered as %q", t, existing.name)
	}
	r.types[t] = meta
	return nil
}

// Resolve returns the lock key for entity.
func (r *MetadataRegistry) Resolve(entity any) (LockKey, error) {
	if entity == nil {
		return LockKey{}, lockingError(ErrUnresolvableEntity, "entity is nil")
	}
	if l, ok := entity.(Lockable); ok {
		return resolveLockable(l)
	}

	t := reflect.TypeOf(entity)
	r.mu.RLock()
	meta, ok := r.types[t]
	r.mu.RUnlock()
	if !ok {
		return LockKey{}, lockingError(ErrUnresolvableEntity, fmt.Sprintf("type %s is not registered", t))
	}

	id := meta.id(entity)
	if id == "" {
		return LockKey{}, lockingError(ErrUnresolvableEntity, fmt.Sprintf("%s has an empty id", meta.name))
	}
	return NewLockKey(meta.name, id), nil
}

func resolveLockable(l Lockable) (LockKey, error) {
	name, id := l.LockObjectName(), l.LockObjectID()
	if name == "" || id == "" {
		return LockKey{}, lockingError(ErrUnresolvableEntity, fmt.Sprintf("%T reports an empty lock identity", l))
	}
	return NewLockKey(name, id), nil
}
