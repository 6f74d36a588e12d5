package treasury

import "sync"

// userLocks serializes wallet mutation per user. Operations for different
// users never block each other; two operations for the same user take turns.
// Locks are created on first use and kept for the process lifetime, so the
// table grows with the user set, not the operation count.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the exclusive lock for a user, creating it if needed.
func (ul *userLocks) Lock(userID string) {
	ul.mu.Lock()
	l, ok := ul.m[userID]
	if !ok {
		l = &sync.Mutex{}
		ul.m[userID] = l
	}
	ul.mu.Unlock()

	l.Lock()
}

// Unlock releases the user's lock. Must follow a matching Lock call.
func (ul *userLocks) Unlock(userID string) {
	ul.mu.Lock()
	l := ul.m[userID]
	ul.mu.Unlock()

	l.Unlock()
}
