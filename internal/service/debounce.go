package service

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid input per key and tags every scheduled call with
// a per-key request id that only ever increases. A result is only worth
// applying while its id is still the latest for the key: the last issued
// request wins, not the last to arrive.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	latest  map[string]uint64
	stopped bool
	wg      sync.WaitGroup
}

// NewDebouncer creates a Debouncer with the given settle delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
		latest: make(map[string]uint64),
	}
}

// Schedule supersedes any pending or in-flight call for key and runs fn with
// the new request id once the delay has passed without another Schedule or
// Clear for the same key. It returns false after Stop.
func (d *Debouncer) Schedule(key string, fn func(id uint64)) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return 0, false
	}

	d.cancelTimerLocked(key)
	d.latest[key]++
	id := d.latest[key]

	d.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.timers[key] == timer {
			delete(d.timers, key)
		}
		live := !d.stopped && d.latest[key] == id
		d.mu.Unlock()

		if live {
			fn(id)
		}
	})
	d.timers[key] = timer

	return id, true
}

// Clear supersedes everything outstanding for key without scheduling anything.
func (d *Debouncer) Clear(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTimerLocked(key)
	d.latest[key]++
}

// IsLatest reports whether id is still the newest request for key.
func (d *Debouncer) IsLatest(key string, id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.stopped && d.latest[key] == id
}

// Stop cancels every pending timer. Results of calls already running are
// no longer latest and must be discarded.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key := range d.timers {
		d.cancelTimerLocked(key)
	}
}

// Wait blocks until every fired callback has returned.
func (d *Debouncer) Wait() {
	d.wg.Wait()
}

func (d *Debouncer) cancelTimerLocked(key string) {
	t, ok := d.timers[key]
	if !ok {
		return
	}
	delete(d.timers, key)
	if t.Stop() {
		d.wg.Done()
	}
}
