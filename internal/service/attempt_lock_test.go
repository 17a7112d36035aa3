package service

import (
	"sync"
	"testing"
	"time"
)

func TestAttemptLockerMutualExclusion(t *testing.T) {
	locker := NewAttemptLocker()

	const workers = 50
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locker.Lock(1)
			defer locker.Unlock(1)
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("lost updates under the lock: %d != %d", counter, workers)
	}
}

func TestAttemptLockerIndependentIDs(t *testing.T) {
	locker := NewAttemptLocker()
	locker.Lock(1)
	defer locker.Unlock(1)

	done := make(chan struct{})
	go func() {
		locker.Lock(2)
		locker.Unlock(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("lock on attempt 2 blocked by attempt 1")
	}
}

func TestAttemptLockerReusesMutexPerID(t *testing.T) {
	locker := NewAttemptLocker()
	locker.Lock(7)

	acquired := make(chan struct{})
	go func() {
		locker.Lock(7)
		close(acquired)
		locker.Unlock(7)
	}()

	select {
	case <-acquired:
		t.Fatalf("second Lock(7) must block while held")
	case <-time.After(50 * time.Millisecond):
	}

	locker.Unlock(7)
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatalf("second Lock(7) never acquired after release")
	}
}
