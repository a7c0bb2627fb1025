package triplist

import (
	"sync"
	"time"
)

// Debouncer delivers the last value passed to Trigger once no new value has
// arrived for the configured delay, and only when it differs from the value
// delivered before it.
type Debouncer struct {
	mu      sync.Mutex
	deliver sync.Mutex // serializes calls to fn
	delay   time.Duration
	fn      func(string)
	timer   *time.Timer
	gen     uint64
	pending string
	last    string
	stopped bool
}

// NewDebouncer returns a debouncer whose last delivered value is initial.
func NewDebouncer(delay time.Duration, initial string, fn func(string)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn, last: initial}
}

// Trigger schedules v, replacing any value still waiting.
func (d *Debouncer) Trigger(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	d.pending = v
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush delivers a waiting value now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop drops any waiting value; later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.deliver.Lock()
	defer d.deliver.Unlock()

	d.mu.Lock()
	if d.stopped || gen != d.gen || d.pending == d.last {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.last = v
	d.mu.Unlock()
	d.fn(v)
}
