package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marma/whistler/internal/model"
)

func TestResizeCoalescerFiresLeadingEdgeImmediately(t *testing.T) {
	var mu sync.Mutex
	var applied []model.TerminalSize
	c := newResizeCoalescer(func(s model.TerminalSize) {
		mu.Lock()
		applied = append(applied, s)
		mu.Unlock()
	})
	defer c.Stop()

	c.Resize(model.TerminalSize{Width: 80, Height: 24})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, applied, 1)
	assert.Equal(t, uint16(80), applied[0].Width)
}

func TestResizeCoalescerSuppressesBurstsWithinCooldown(t *testing.T) {
	var mu sync.Mutex
	var applied []model.TerminalSize
	c := newResizeCoalescer(func(s model.TerminalSize) {
		mu.Lock()
		applied = append(applied, s)
		mu.Unlock()
	})
	defer c.Stop()

	c.Resize(model.TerminalSize{Width: 80, Height: 24})
	c.Resize(model.TerminalSize{Width: 90, Height: 24})
	c.Resize(model.TerminalSize{Width: 100, Height: 30})

	mu.Lock()
	n := len(applied)
	mu.Unlock()
	assert.Equal(t, 1, n, "only the leading-edge resize should apply immediately")

	time.Sleep(resizeCooldown + 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, applied, 2, "the last pending size should apply once the cooldown expires")
	assert.Equal(t, uint16(100), applied[1].Width)
}

func TestResizeCoalescerIdlesWhenNothingPendingAtExpiry(t *testing.T) {
	var mu sync.Mutex
	var applied []model.TerminalSize
	c := newResizeCoalescer(func(s model.TerminalSize) {
		mu.Lock()
		applied = append(applied, s)
		mu.Unlock()
	})
	defer c.Stop()

	c.Resize(model.TerminalSize{Width: 80, Height: 24})
	time.Sleep(resizeCooldown + 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, applied, 1)
}
