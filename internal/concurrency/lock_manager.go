package concurrency

import (
	"sync"

	"github.com/maternar/sync-engine/internal/domain"
)

// LockManager hands out named locks. The engine uses one lock per
// (entityType, entityId) so mutations for the same record serialize while
// unrelated records proceed concurrently.
type LockManager struct {
	locks sync.Map
}

// NewLockManager creates a new LockManager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// GetLock returns a mutex for the given key
func (lm *LockManager) GetLock(key string) *sync.Mutex {
	lock, _ := lm.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// EntityKey builds the lock key for one entity
func EntityKey(entityType domain.EntityType, entityID string) string {
	return string(entityType) + ":" + entityID
}

// WithEntityLock runs fn while holding the entity's lock
func (lm *LockManager) WithEntityLock(entityType domain.EntityType, entityID string, fn func()) {
	lock := lm.GetLock(EntityKey(entityType, entityID))
	lock.Lock()
	defer lock.Unlock()
	fn()
}
