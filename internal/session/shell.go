package session

import (
	"context"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/marma/whistler/internal/exectransport"
	"github.com/marma/whistler/internal/model"
)

// bindShell wires an exec stream running /bin/bash inside the pod to the
// SSH channel, per spec.md §4.2's shell-bind step. TTY streams carry
// combined stdout+stderr and accept live resizes; non-TTY streams keep
// stderr on the channel's extended-data stream and never resize.
//
// The original implementation allocated a local PTY pair around a
// subprocess invocation of kubectl; this implementation instead drives
// k8s.io/client-go's remotecommand executor directly (see
// internal/exectransport), which negotiates the PTY inside the
// container itself and accepts resize through a TerminalSizeQueue. A
// local PTY would have nothing to attach to here: there is no local
// subprocess whose slave end it could bind.
func bindShell(ctx context.Context, channel ssh.Channel, stream *exectransport.Stream, tty bool, resizes <-chan model.TerminalSize) error {
	copyDone := make(chan struct{}, 2)

	go func() {
		io.Copy(stream.Stdin, channel)
		stream.Stdin.Close()
		copyDone <- struct{}{}
	}()
	go func() {
		io.Copy(channel, stream.Stdout)
		copyDone <- struct{}{}
	}()

	var stderrDone chan struct{}
	if !tty && stream.Stderr != nil {
		stderrDone = make(chan struct{})
		go func() {
			io.Copy(channel.Stderr(), stream.Stderr)
			close(stderrDone)
		}()
	}

	if tty && stream.Resize != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case size, ok := <-resizes:
					if !ok {
						return
					}
					select {
					case stream.Resize <- exectransport.TerminalSize{Width: size.Width, Height: size.Height}:
					default:
					}
				}
			}
		}()
	}

	err := stream.Wait()
	channel.CloseWrite()
	if stderrDone != nil {
		<-stderrDone
	}
	return err
}
