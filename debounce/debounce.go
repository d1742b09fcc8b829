// Package debounce collapses bursts of input into a single call fired after
// a quiet period.
package debounce

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Debouncer runs the most recently triggered function once no new trigger
// has arrived for the configured delay
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending func()
	running sync.WaitGroup
}

// New creates a debouncer with the given quiet period
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, replacing any pending call and restarting the delay
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		// A timer that already fired cannot be stopped; the generation check drops it
		d.mu.Lock()
		if gen != d.gen || d.pending == nil {
			d.mu.Unlock()
			return
		}
		run := d.pending
		d.pending = nil
		d.running.Add(1)
		d.mu.Unlock()

		defer d.running.Done()
		run()
	})
}

// Cancel drops any pending call
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Flush runs the pending call now instead of after the delay, then waits for
// any call that had already fired to return
func (d *Debouncer) Flush() {
	d.mu.Lock()
	d.gen++
	run := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if run != nil {
		run()
	}
	d.running.Wait()
}

// Search feeds successive search-box contents into a debounced query callback.
// Inputs shorter than the minimum length cancel any pending query.
type Search struct {
	debouncer *Debouncer
	minLength int
	onQuery   func(query string)
}

// NewSearch creates a search debouncer. minLength is the shortest trimmed
// query (in characters) that is worth sending upstream.
func NewSearch(delay time.Duration, minLength int, onQuery func(query string)) *Search {
	return &Search{
		debouncer: New(delay),
		minLength: minLength,
		onQuery:   onQuery,
	}
}

// Input records the current contents of the search box
func (s *Search) Input(text string) {
	query := strings.TrimSpace(text)
	if utf8.RuneCountInString(query) < s.minLength {
		s.debouncer.Cancel()
		return
	}
	s.debouncer.Trigger(func() { s.onQuery(query) })
}

// Stop drops any pending query
func (s *Search) Stop() {
	s.debouncer.Cancel()
}

// Flush sends the pending query immediately and returns once every query
// callback has finished
func (s *Search) Flush() {
	s.debouncer.Flush()
}
