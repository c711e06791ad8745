package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/ssh"
	clientexec "k8s.io/client-go/util/exec"

	"github.com/marma/whistler/internal/exectransport"
	"github.com/marma/whistler/internal/logger"
)

// agentForwardChannelType is the SSH channel type a server opens back to
// the client to relay agent traffic, per RFC 4254's agent extension and
// openssh-agent.c's naming.
const agentForwardChannelType = "auth-agent@openssh.com"

// agentBridge shuttles SSH agent traffic between the outer SSH client
// (reached by opening an auth-agent@openssh.com channel on the
// connection the session rides on) and a socat process running inside
// the pod, per spec.md §4.1's "Agent bridge" step. It is grounded on
// _bridge_agent in original_source/whistler/server.py; the probe/inject/
// launch steps are the same three steps, expressed with ExecTransport
// instead of asyncssh's raw kubectl-exec subprocess calls.
type agentBridge struct {
	exec            exectransport.ExecTransport
	conn            ssh.Conn
	staticSocatPath string // bundled static socat binary, injected if the pod lacks one
}

func newAgentBridge(exec exectransport.ExecTransport, conn ssh.Conn, staticSocatPath string) *agentBridge {
	return &agentBridge{exec: exec, conn: conn, staticSocatPath: staticSocatPath}
}

// Run probes for socat inside the pod, injects the bundled static binary
// if absent, launches it listening on podSocketPath, and bridges it to
// the outer SSH connection's agent channel until ctx is cancelled or the
// pod-side process exits.
func (b *agentBridge) Run(ctx context.Context, podName, container, podSocketPath string) error {
	log := logger.Session().With().Str("pod", podName).Str("socket", podSocketPath).Logger()

	socatCmd := "socat"
	if !b.probeSocat(ctx, podName, container) {
		if b.probeStaticSocat(ctx, podName, container) {
			log.Debug().Msg("static socat already present from an earlier connection, skipping upload")
		} else {
			log.Info().Msg("socat not present in pod, injecting static binary")
			if err := b.injectStaticSocat(ctx, podName, container); err != nil {
				return fmt.Errorf("injecting static socat: %w", err)
			}
		}
		socatCmd = "/tmp/socat-static"
	}

	listen := fmt.Sprintf("%s UNIX-LISTEN:%s,fork,mode=600 STDIO", socatCmd, podSocketPath)
	stream, err := b.exec.Exec(ctx, podName, container, []string{"sh", "-c", listen}, false)
	if err != nil {
		return fmt.Errorf("starting pod-side socat: %w", err)
	}

	ch, reqs, err := b.conn.OpenChannel(agentForwardChannelType, nil)
	if err != nil {
		return fmt.Errorf("opening agent forward channel: %w", err)
	}
	go ssh.DiscardRequests(reqs)
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		io.Copy(ch, stream.Stdout)
		ch.CloseWrite()
		close(done)
	}()
	go io.Copy(stream.Stdin, ch)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return stream.Wait()
	}
}

// probeSocat runs "command -v socat" inside the pod and reports whether
// it succeeded, the same check _is_command_available performs in the
// Python original.
func (b *agentBridge) probeSocat(ctx context.Context, podName, container string) bool {
	stream, err := b.exec.Exec(ctx, podName, container, []string{"sh", "-c", "command -v socat"}, false)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, stream.Stdout)
	err = stream.Wait()
	if err == nil {
		return true
	}
	var exitErr clientexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus() == 0
	}
	return false
}

// probeStaticSocat checks whether a previous connection in this pod's
// lifetime already uploaded /tmp/socat-static, mirroring _is_file_present
// in the Python original so a second connection doesn't re-upload it.
func (b *agentBridge) probeStaticSocat(ctx context.Context, podName, container string) bool {
	stream, err := b.exec.Exec(ctx, podName, container, []string{"sh", "-c", "test -f /tmp/socat-static"}, false)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, stream.Stdout)
	err = stream.Wait()
	if err == nil {
		return true
	}
	var exitErr clientexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus() == 0
	}
	return false
}

// injectStaticSocat streams the bundled static binary into the pod over
// an exec stdin pipe, the Go equivalent of the original's
// "cat > path && chmod +x path" upload.
func (b *agentBridge) injectStaticSocat(ctx context.Context, podName, container string) error {
	f, err := os.Open(b.staticSocatPath)
	if err != nil {
		return fmt.Errorf("opening bundled static socat at %s: %w", b.staticSocatPath, err)
	}
	defer f.Close()

	stream, err := b.exec.Exec(ctx, podName, container,
		[]string{"sh", "-c", "cat > /tmp/socat-static && chmod +x /tmp/socat-static"}, false)
	if err != nil {
		return err
	}

	go func() {
		io.Copy(stream.Stdin, f)
		stream.Stdin.Close()
	}()
	io.Copy(io.Discard, stream.Stdout)
	return stream.Wait()
}
