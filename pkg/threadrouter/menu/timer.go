package menu

import (
	"sync"
	"time"
)

// Timer is a cancellable one-shot timer. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// timeoutWatcher is the cancellation handle of a menu's timeout. Cancel is
// safe after the timer fired and may be called any number of times.
type timeoutWatcher struct {
	mu       sync.Mutex
	timer    Timer
	canceled bool
}

// arm schedules f. The timer is created outside the lock because f may run
// (and cancel the watcher) before after returns.
func (w *timeoutWatcher) arm(after AfterFunc, d time.Duration, f func()) {
	w.mu.Lock()
	skip := w.canceled || d <= 0
	w.mu.Unlock()
	if skip {
		return
	}

	t := after(d, f)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.canceled {
		t.Stop()
		return
	}
	w.timer = t
}

func (w *timeoutWatcher) cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.canceled {
		return
	}
	w.canceled = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
