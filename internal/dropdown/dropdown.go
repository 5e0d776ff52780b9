// Package dropdown models the cart and wishlist header panels: when they
// open, how long they stay open, and which count changes pop them open.
package dropdown

import (
	"fmt"
	"sync"
	"time"
)

// Default timings.
const (
	DefaultAutoClose  = 5 * time.Second
	DefaultHoverGrace = 200 * time.Millisecond
)

// Name identifies a dropdown.
type Name string

const (
	Cart     Name = "cart"
	Wishlist Name = "wishlist"
)

// ParseName validates a dropdown name from a URL.
func ParseName(s string) (Name, error) {
	switch Name(s) {
	case Cart, Wishlist:
		return Name(s), nil
	}
	return "", fmt.Errorf("unknown dropdown %q", s)
}

// State is what the browser needs to render the panel.
type State struct {
	Name            Name `json:"name"`
	Open            bool `json:"open"`
	TriggerRendered bool `json:"trigger_rendered"`
	Count           int  `json:"count"`
}

// Config holds the panel timings.
type Config struct {
	AutoClose  time.Duration
	HoverGrace time.Duration
}

// Dropdown is safe for concurrent use. Every operation cancels the pending
// close timer before scheduling a new one.
type Dropdown struct {
	name Name
	cfg  Config

	mu              sync.Mutex
	open            bool
	triggerRendered bool
	count           int
	countKnown      bool
	ignoreNextCount bool
	timer           *time.Timer
	timerSeq        uint64
	listeners       []func(State)
	closed          bool
}

// New creates a closed dropdown.
func New(name Name, cfg Config) *Dropdown {
	if cfg.AutoClose <= 0 {
		cfg.AutoClose = DefaultAutoClose
	}
	if cfg.HoverGrace <= 0 {
		cfg.HoverGrace = DefaultHoverGrace
	}
	return &Dropdown{name: name, cfg: cfg}
}

// Name returns the dropdown's name.
func (d *Dropdown) Name() Name { return d.name }

// State returns the current state.
func (d *Dropdown) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateLocked()
}

func (d *Dropdown) stateLocked() State {
	return State{Name: d.name, Open: d.open, TriggerRendered: d.triggerRendered, Count: d.count}
}

// OnChange registers fn to run after every state change, outside the lock.
func (d *Dropdown) OnChange(fn func(State)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// HoverEnter opens the panel and cancels any pending close.
func (d *Dropdown) HoverEnter() {
	d.update(func() bool {
		d.stopTimerLocked()
		return d.setOpenLocked(true)
	})
}

// HoverLeave closes the panel after the hover grace period.
func (d *Dropdown) HoverLeave() {
	d.update(func() bool {
		d.scheduleCloseLocked(d.cfg.HoverGrace)
		return false
	})
}

// Blur closes the panel now.
func (d *Dropdown) Blur() {
	d.update(func() bool {
		d.stopTimerLocked()
		return d.setOpenLocked(false)
	})
}

// Open shows the panel for the auto-close period. It does nothing while the
// trigger is not rendered and reports whether the panel opened.
func (d *Dropdown) Open() bool {
	opened := false
	d.update(func() bool {
		if !d.triggerRendered {
			return false
		}
		opened = true
		d.scheduleCloseLocked(d.cfg.AutoClose)
		return d.setOpenLocked(true)
	})
	return opened
}

// SetTriggerRendered records whether the header trigger is on the page.
// Hiding the trigger closes the panel.
func (d *Dropdown) SetTriggerRendered(rendered bool) {
	d.update(func() bool {
		changed := d.triggerRendered != rendered
		d.triggerRendered = rendered
		if !rendered {
			d.stopTimerLocked()
			if d.setOpenLocked(false) {
				changed = true
			}
		}
		return changed
	})
}

// MarkInternalDelete makes the next count change not reopen the panel. Used
// when the shopper deletes an item from within the panel itself.
func (d *Dropdown) MarkInternalDelete() {
	d.mu.Lock()
	d.ignoreNextCount = true
	d.mu.Unlock()
}

// CountChanged records a new item count. A change after the first observed
// count reopens the panel, unless MarkInternalDelete consumed it.
func (d *Dropdown) CountChanged(n int) {
	d.update(func() bool {
		if !d.countKnown {
			d.countKnown = true
			d.count = n
			return true
		}
		if n == d.count {
			return false
		}
		d.count = n
		if d.ignoreNextCount {
			d.ignoreNextCount = false
			return true
		}
		if d.triggerRendered {
			d.scheduleCloseLocked(d.cfg.AutoClose)
			d.setOpenLocked(true)
		}
		return true
	})
}

// Close stops the pending timer and detaches every listener.
func (d *Dropdown) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.stopTimerLocked()
	d.listeners = nil
}

// update runs fn under the lock and notifies listeners if fn reports a change.
func (d *Dropdown) update(fn func() bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if !fn() {
		d.mu.Unlock()
		return
	}
	state := d.stateLocked()
	listeners := make([]func(State), len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

func (d *Dropdown) setOpenLocked(open bool) bool {
	if d.open == open {
		return false
	}
	d.open = open
	return true
}

func (d *Dropdown) stopTimerLocked() {
	d.timerSeq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Dropdown) scheduleCloseLocked(after time.Duration) {
	d.stopTimerLocked()
	seq := d.timerSeq
	d.timer = time.AfterFunc(after, func() {
		d.update(func() bool {
			// A newer operation replaced this timer.
			if seq != d.timerSeq {
				return false
			}
			d.timer = nil
			return d.setOpenLocked(false)
		})
	})
}
