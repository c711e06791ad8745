package gateway

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/marma/whistler/internal/exectransport"
	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/logger"
	"github.com/marma/whistler/internal/metrics"
	"github.com/marma/whistler/internal/model"
	"github.com/marma/whistler/internal/session"
)

// directTCPIPPayload mirrors RFC 4254 §7.2's direct-tcpip channel-open
// payload.
type directTCPIPPayload struct {
	DestAddr string
	DestPort uint32
	OrigAddr string
	OrigPort uint32
}

// handleDirectTCPIP enforces the forward-channel policy of spec.md
// §4.1: destination must be localhost, the session must already be
// bound to a running instance, and that instance's pod must be
// Running. On success it opens an ExecTransport stream that pipes raw
// bytes to 127.0.0.1:<port> inside the pod and wires it as the
// channel's read/write half.
func (g *Gateway) handleDirectTCPIP(newCh ssh.NewChannel, sess *session.Session, store instancestore.InstanceStore, newExec func(string) exectransport.ExecTransport) {
	var payload directTCPIPPayload
	if err := ssh.Unmarshal(newCh.ExtraData(), &payload); err != nil {
		newCh.Reject(ssh.ConnectionFailed, "malformed forward request")
		return
	}

	if payload.DestAddr != "localhost" && payload.DestAddr != "127.0.0.1" {
		metrics.RecordForwardDecision("denied_host")
		newCh.Reject(ssh.Prohibited, "administratively prohibited")
		return
	}

	name, ok := sess.ActiveInstance()
	if !ok {
		metrics.RecordForwardDecision("denied_no_instance")
		newCh.Reject(ssh.Prohibited, "administratively prohibited")
		return
	}

	ctx := context.Background()
	inst, found, err := store.GetInstance(ctx, sess.Owner, name)
	if err != nil || !found || inst.PodName == "" || inst.Status != model.StatusRunning {
		metrics.RecordForwardDecision("denied_not_running")
		newCh.Reject(ssh.ConnectionFailed, "connect failed")
		return
	}

	metrics.RecordForwardDecision("allowed")
	channel, requests, err := newCh.Accept()
	if err != nil {
		return
	}
	go ssh.DiscardRequests(requests)

	exec := newExec(instancestore.PerUserNamespace(sess.Owner))
	cmd := []string{"sh", "-c", fmt.Sprintf("socat - TCP4:127.0.0.1:%d", payload.DestPort)}
	stream, err := exec.Exec(ctx, inst.PodName, "main", cmd, false)
	if err != nil {
		logger.Gateway().Warn().Err(err).Msg("forward tunnel exec failed")
		channel.Close()
		return
	}

	go func() {
		done := make(chan struct{})
		go func() { io.Copy(stream.Stdin, channel); close(done) }()
		io.Copy(channel, stream.Stdout)
		<-done
		channel.Close()
	}()
}
