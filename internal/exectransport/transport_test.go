package exectransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResizeQueueDeliversUpdates(t *testing.T) {
	ch := make(chan TerminalSize, 1)
	q := &resizeQueue{ch: ch}

	ch <- TerminalSize{Width: 120, Height: 40}
	size := q.Next()

	assert.NotNil(t, size)
	assert.Equal(t, uint16(120), size.Width)
	assert.Equal(t, uint16(40), size.Height)
}

func TestResizeQueueReturnsNilWhenClosed(t *testing.T) {
	ch := make(chan TerminalSize)
	q := &resizeQueue{ch: ch}
	close(ch)

	assert.Nil(t, q.Next())
}
