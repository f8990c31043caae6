package inmem

import (
	"context"
	"sync"

	"github.com/bitcollege/registrar/internal/domain/numbering"
)

// SequenceAllocator implements numbering.Allocator on DB.counters.
// counters holds the next available number of each category.
type SequenceAllocator struct {
	db *DB
}

// NewSequenceAllocator creates a new SequenceAllocator.
func NewSequenceAllocator(db *DB) *SequenceAllocator {
	return &SequenceAllocator{db: db}
}

// AllocateNext implements numbering.Allocator.
func (a *SequenceAllocator) AllocateNext(ctx context.Context, category numbering.Category) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	seed, err := category.Seed()
	if err != nil {
		return 0, err
	}

	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	next, ok := a.db.counters[category]
	if !ok {
		next = seed
	}
	a.db.counters[category] = next + 1
	return next, nil
}

// Peek returns the number the next allocation would issue without taking it.
func (a *SequenceAllocator) Peek(_ context.Context, category numbering.Category) (int64, error) {
	seed, err := category.Seed()
	if err != nil {
		return 0, err
	}

	a.db.mu.RLock()
	defer a.db.mu.RUnlock()

	if next, ok := a.db.counters[category]; ok {
		return next, nil
	}
	return seed, nil
}

var _ numbering.Allocator = (*SequenceAllocator)(nil)

// StudentLocker serializes work per student inside one process.
type StudentLocker struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewStudentLocker creates a new StudentLocker.
func NewStudentLocker() *StudentLocker {
	return &StudentLocker{locks: make(map[int64]*keyedLock)}
}

// Lock blocks until the student's lock is free or ctx is done.
func (l *StudentLocker) Lock(ctx context.Context, studentID int64) (func(), error) {
	l.mu.Lock()
	k, ok := l.locks[studentID]
	if !ok {
		k = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[studentID] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(studentID, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-k.ch
			l.unref(studentID, k)
		})
	}
	return release, nil
}

func (l *StudentLocker) unref(studentID int64, k *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, studentID)
	}
}
