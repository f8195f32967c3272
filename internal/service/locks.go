package service

import (
	"sync"

	"github.com/google/uuid"
)

// jobCardLocks мьютекс на каждый заказ-наряд; запись удаляется, когда её никто не держит
type jobCardLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*jobCardLock
}

type jobCardLock struct {
	mu   sync.Mutex
	refs int
}

func newJobCardLocks() *jobCardLocks {
	return &jobCardLocks{locks: make(map[uuid.UUID]*jobCardLock)}
}

func (l *jobCardLocks) Lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &jobCardLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *jobCardLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
