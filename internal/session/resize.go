package session

import (
	"sync"
	"time"

	"github.com/marma/whistler/internal/model"
)

// resizeCooldown is the trailing debounce window after a leading-edge
// resize fire, grounded on _resize_cooldown_expired's hardcoded 0.1s
// in original_source/whistler/server.py.
const resizeCooldown = 100 * time.Millisecond

// resizeCoalescer applies a terminal resize immediately on the first
// event, then suppresses further events for resizeCooldown; if another
// resize arrives during that window, it is applied once the window
// expires. This matches the Python original's leading-edge-plus-trailing
// debounce instead of a plain fixed-interval throttle, so a user who
// drags a terminal border sees the final size promptly once they stop.
type resizeCoalescer struct {
	apply func(model.TerminalSize)
	clock func() *time.Timer

	mu      sync.Mutex
	timer   *time.Timer
	pending *model.TerminalSize
}

func newResizeCoalescer(apply func(model.TerminalSize)) *resizeCoalescer {
	return &resizeCoalescer{apply: apply}
}

// Resize records a new terminal size request, firing immediately if no
// cooldown is in effect, or queuing it for the cooldown's expiry.
func (r *resizeCoalescer) Resize(size model.TerminalSize) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer == nil {
		r.apply(size)
		r.timer = time.AfterFunc(resizeCooldown, r.cooldownExpired)
		return
	}
	r.pending = &size
}

func (r *resizeCoalescer) cooldownExpired() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.timer = nil
	r.mu.Unlock()

	if pending != nil {
		r.Resize(*pending)
	}
}

// Stop cancels any outstanding cooldown timer. Call when the session
// ends so the timer doesn't fire a resize against a closed stream.
func (r *resizeCoalescer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
}
