package infra

import "sync"

// KeyedMutex serializes work per key while leaving distinct keys fully
// concurrent. Mutexes are never evicted; the key space is bounded by the
// active chat population, which is small relative to memory.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

func NewKeyedMutex[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{locks: map[K]*sync.Mutex{}}
}

func (km *KeyedMutex[K]) Lock(key K) {
	km.mu.Lock()
	lock, ok := km.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		km.locks[key] = lock
	}
	km.mu.Unlock()
	lock.Lock()
}

func (km *KeyedMutex[K]) Unlock(key K) {
	km.mu.Lock()
	lock := km.locks[key]
	km.mu.Unlock()
	if lock != nil {
		lock.Unlock()
	}
}
