package debounce

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerFiresOnceAfterQuiet(t *testing.T) {
	d := New(50 * time.Millisecond)

	var mu sync.Mutex
	var fired []int
	done := make(chan struct{}, 5)

	for i := 1; i <= 5; i++ {
		n := i
		d.Trigger(func() {
			mu.Lock()
			fired = append(fired, n)
			mu.Unlock()
			done <- struct{}{}
		})
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	// Leave room for any stray extra call
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != 5 {
		t.Fatalf("expected only the last trigger to fire, got %v", fired)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := New(20 * time.Millisecond)
	fired := make(chan struct{}, 1)
	d.Trigger(func() { fired <- struct{}{} })
	d.Cancel()

	select {
	case <-fired:
		t.Fatal("canceled call fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestSearchIgnoresShortQueries(t *testing.T) {
	queries := make(chan string, 4)
	s := NewSearch(20*time.Millisecond, 3, func(q string) { queries <- q })
	defer s.Stop()

	s.Input("I")
	s.Input("Is")
	s.Input("  Is ")

	select {
	case q := <-queries:
		t.Fatalf("short query %q reached the callback", q)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestSearchCoalescesKeystrokes(t *testing.T) {
	queries := make(chan string, 4)
	s := NewSearch(30*time.Millisecond, 3, func(q string) { queries <- q })
	defer s.Stop()

	for _, text := range []string{"Isl", "Isla", "Islam", "Islamabad "} {
		s.Input(text)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case q := <-queries:
		if q != "Islamabad" {
			t.Fatalf("expected trimmed final query, got %q", q)
		}
	case <-time.After(time.Second):
		t.Fatal("no query fired")
	}

	select {
	case q := <-queries:
		t.Fatalf("unexpected extra query %q", q)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestSearchShortInputCancelsPending(t *testing.T) {
	queries := make(chan string, 2)
	s := NewSearch(40*time.Millisecond, 3, func(q string) { queries <- q })

	s.Input("Oslo")
	s.Input("Os") // user deleted characters before the delay elapsed

	select {
	case q := <-queries:
		t.Fatalf("pending query %q should have been canceled", q)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerFlushRunsPendingNow(t *testing.T) {
	d := New(time.Hour)
	fired := 0
	d.Trigger(func() { fired++ })
	d.Trigger(func() { fired += 10 })

	d.Flush()
	if fired != 10 {
		t.Fatalf("expected only the latest call to run once, got %d", fired)
	}

	d.Flush()
	if fired != 10 {
		t.Fatalf("second flush ran a call again, got %d", fired)
	}
}

func TestDebouncerFlushWaitsForFiredCall(t *testing.T) {
	d := New(5 * time.Millisecond)
	started := make(chan struct{})
	var finished bool
	var mu sync.Mutex

	d.Trigger(func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Fatal("Flush returned while a fired call was still running")
	}
}

func TestSearchFlushDeliversLastQuery(t *testing.T) {
	var got []string
	s := NewSearch(time.Hour, 3, func(q string) { got = append(got, q) })

	s.Input("Isl")
	s.Input("Islam")
	s.Flush()

	if len(got) != 1 || got[0] != "Islam" {
		t.Fatalf("expected only the final query, got %v", got)
	}
}
