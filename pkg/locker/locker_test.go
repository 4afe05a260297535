package locker_test

import (
	"sync"
	"testing"

	"github.com/forscht/filedeck/pkg/locker"
)

func TestLocker(t *testing.T) {
	l := locker.New()

	testID := "test_id"
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Acquire(testID)
			counter++
			l.Release(testID)
		}()
	}

	wg.Wait()
	if counter != 100 {
		t.Errorf("expected counter 100, got %d", counter)
	}
	if l.Len() != 0 {
		t.Errorf("expected no tracked keys, got %d", l.Len())
	}
}

func TestLocker_MultipleIDs(t *testing.T) {
	l := &locker.Locker{}

	testIDs := []string{"id1", "id2", "id3"}

	var wg sync.WaitGroup
	for _, id := range testIDs {
		wg.Add(1)
		go func(testID string) {
			defer wg.Done()
			l.Acquire(testID)
			l.Release(testID)
		}(id)
	}

	wg.Wait()
	if l.Len() != 0 {
		t.Errorf("expected no tracked keys, got %d", l.Len())
	}
}

func TestLocker_ReleaseUnknown(t *testing.T) {
	l := locker.New()
	l.Release("missing")
	if l.Len() != 0 {
		t.Errorf("expected no tracked keys, got %d", l.Len())
	}
}
