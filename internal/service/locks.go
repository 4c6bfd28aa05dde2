package service

import "sync"

// UserLocks serialises trip-mutating work per user. Live events, the parse
// pass, photo correlation and sync all take the same lock, so one user's
// trips are never mutated concurrently. Share one UserLocks between all
// services of a process.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock is one user's mutex and the number of holders plus waiters.
// The entry leaves the table when refs drops to zero.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewUserLocks returns an empty lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*userLock)}
}

// Lock blocks until the user's lock is held and returns the unlock func.
// The unlock func must be called exactly once.
func (l *UserLocks) Lock(userID string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[userID]
	if !ok {
		e = &userLock{}
		l.locks[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of users currently holding or waiting for a lock.
func (l *UserLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
