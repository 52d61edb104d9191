package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestCreateULIDSequentialOrdering(t *testing.T) {
	const total = 100
	ids := make([]string, total)
	for i := 0; i < total; i++ {
		ids[i] = CreateULID()
	}

	for i := 0; i < total; i++ {
		if len(ids[i]) != 26 {
			t.Fatalf("expected ULID length 26, got %d", len(ids[i]))
		}
		if _, err := ulid.Parse(ids[i]); err != nil {
			t.Fatalf("expected valid ULID, got %v", err)
		}
	}

	for i := 1; i < total; i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("expected ULIDs to be strictly increasing, %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestCreateULIDAtEncodesTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	parsed, err := ulid.Parse(CreateULIDAt(at))
	if err != nil {
		t.Fatalf("expected valid ULID, got %v", err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, got)
	}
}

func TestCounterStartsAtOneAndIncreases(t *testing.T) {
	var c Counter
	if c.Last() != 0 {
		t.Fatalf("expected fresh counter to report 0, got %d", c.Last())
	}
	for want := uint64(1); want <= 5; want++ {
		if got := c.Next(); got != want {
			t.Fatalf("expected id %d, got %d", want, got)
		}
	}
	if c.Last() != 5 {
		t.Fatalf("expected last id 5, got %d", c.Last())
	}
}

func TestCounterConcurrentUniqueness(t *testing.T) {
	const goroutines = 10
	const perGoroutine = 50

	var (
		c    Counter
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]struct{})
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := c.Next()
				mu.Lock()
				if _, ok := seen[id]; ok {
					t.Errorf("duplicate id allocated: %d", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("expected %d unique ids, got %d", goroutines*perGoroutine, len(seen))
	}
	if c.Last() != uint64(goroutines*perGoroutine) {
		t.Fatalf("expected last id %d, got %d", goroutines*perGoroutine, c.Last())
	}
}
