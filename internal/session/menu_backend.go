package session

import (
	"golang.org/x/crypto/ssh"

	"github.com/marma/whistler/internal/model"
	"github.com/marma/whistler/internal/tui"
)

// channelBackend adapts one SSH channel into the tui.TerminalBackend
// contract the out-of-scope menu collaborator consumes.
type channelBackend struct {
	channel ssh.Channel
	input   chan []byte
	resize  chan model.TerminalSize
}

func newChannelBackend(channel ssh.Channel, resizes <-chan model.TerminalSize) tui.TerminalBackend {
	b := &channelBackend{
		channel: channel,
		input:   make(chan []byte, 16),
		resize:  make(chan model.TerminalSize, 1),
	}
	go b.readLoop()
	go b.relayResizes(resizes)
	return b
}

func (b *channelBackend) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := b.channel.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			b.input <- chunk
		}
		if err != nil {
			close(b.input)
			return
		}
	}
}

func (b *channelBackend) relayResizes(resizes <-chan model.TerminalSize) {
	c := newResizeCoalescer(func(size model.TerminalSize) {
		select {
		case b.resize <- size:
		default:
		}
	})
	defer c.Stop()
	for size := range resizes {
		c.Resize(size)
	}
}

func (b *channelBackend) Write(p []byte) (int, error)              { return b.channel.Write(p) }
func (b *channelBackend) FeedInput() <-chan []byte                 { return b.input }
func (b *channelBackend) PostResize() <-chan model.TerminalSize    { return b.resize }
func (b *channelBackend) EnterAppMode()                            {}
func (b *channelBackend) LeaveAppMode()                            {}
