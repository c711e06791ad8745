// Package gateway is the SSH front-end of spec.md §4.1: it accepts
// connections on TCP, authenticates against UserDirectory, parses the
// login handle into a target, and hands the accepted "session" channel
// off to a session.Coordinator for the rest of that connection's life.
// Direct-tcpip channels are policed here directly, since authorizing
// them only needs the bound Session and InstanceStore, not the full
// coordinator.
//
// It is grounded on the SSH server setup in
// original_source/whistler/server.py's SSHServer (asyncssh), translated
// to golang.org/x/crypto/ssh's lower-level callback-based API — the
// only dependency in the pack that exposes direct-tcpip and
// auth-agent-req@openssh.com handling the way this spec needs; the
// other_examples/manifests/invowk-invowk stack (charmbracelet/ssh +
// wish) wraps these behind a higher-level API that does not expose
// forwarded-channel policy decisions the way this gateway requires.
package gateway

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/marma/whistler/internal/config"
	"github.com/marma/whistler/internal/exectransport"
	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/logger"
	"github.com/marma/whistler/internal/metrics"
	"github.com/marma/whistler/internal/model"
	"github.com/marma/whistler/internal/session"
)

// allowAnyEnvVar is the dev-mode bypass spec.md §4.1/§6 describes:
// advertise password auth and accept any password, still parsing the
// handle normally.
const allowAnyEnvVar = "WHISTLER_AUTH_ALLOW_ANY"

// Gateway listens for SSH connections and dispatches each to a
// session.Coordinator.
type Gateway struct {
	Addr            string
	HostKeyPath     string
	Users           config.UserDirectory
	Store           instancestore.InstanceStore
	NewExec         func(namespace string) exectransport.ExecTransport
	Coordinator     *session.Coordinator
	allowAnyPassword bool
}

// New builds a Gateway. allowAnyPassword is read here from the
// WHISTLER_AUTH_ALLOW_ANY environment variable (enabled when "true").
func New(addr, hostKeyPath string, users config.UserDirectory, store instancestore.InstanceStore, newExec func(string) exectransport.ExecTransport, coord *session.Coordinator) *Gateway {
	return &Gateway{
		Addr:             addr,
		HostKeyPath:      hostKeyPath,
		Users:            users,
		Store:            store,
		NewExec:          newExec,
		Coordinator:      coord,
		allowAnyPassword: os.Getenv(allowAnyEnvVar) == "true",
	}
}

// ListenAndServe blocks, accepting and serving connections until ctx is
// cancelled or Listen fails.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	signer, err := loadOrGenerateHostKey(g.HostKeyPath)
	if err != nil {
		return fmt.Errorf("loading host key: %w", err)
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: g.publicKeyCallback,
	}
	if g.allowAnyPassword {
		cfg.PasswordCallback = g.passwordCallback
	}
	cfg.AddHostKey(signer)

	listener, err := net.Listen("tcp", g.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.Addr, err)
	}
	defer listener.Close()

	logger.Gateway().Info().Str("addr", g.Addr).Msg("gateway listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		go g.serveConn(ctx, conn, cfg)
	}
}

func (g *Gateway) serveConn(ctx context.Context, conn net.Conn, cfg *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		logger.Gateway().Debug().Err(err).Msg("handshake failed")
		conn.Close()
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)
	go keepalive(ctx, sshConn)

	owner := model.Owner(sshConn.Permissions.Extensions["owner"])
	target := model.Target{
		Kind: model.TargetKind(mustAtoi(sshConn.Permissions.Extensions["targetKind"])),
		Name: model.ShortName(sshConn.Permissions.Extensions["targetName"]),
	}
	sess := session.New(owner, target)

	for newCh := range chans {
		switch newCh.ChannelType() {
		case "session":
			channel, requests, err := newCh.Accept()
			if err != nil {
				continue
			}
			go func() {
				defer channel.Close()
				if err := g.Coordinator.Run(ctx, sshConn, channel, requests, sess); err != nil {
					logger.Gateway().Debug().Err(err).Str("owner", string(owner)).Msg("session ended")
				}
			}()
		case "direct-tcpip":
			g.handleDirectTCPIP(newCh, sess, g.Store, g.NewExec)
		default:
			newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
		}
	}
}

// publicKeyCallback matches spec.md §4.1's validation: look up the
// owner, enumerate their keys, match by marshaled wire-format body.
// Handle parsing happens here (not after auth) because the suffix
// resolution needs no secret material and doing it once, up front,
// lets the result ride to the channel-handling stage on
// Permissions.Extensions.
func (g *Gateway) publicKeyCallback(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	handle := conn.User()
	owner, target, err := parseHandle(context.Background(), g.Store, handle)
	if err != nil {
		return nil, fmt.Errorf("resolving handle: %w", err)
	}

	user, found := g.Users.User(owner)
	if !found {
		metrics.RecordAuthOutcome("rejected")
		return nil, fmt.Errorf("access denied")
	}

	marshaled := key.Marshal()
	matched := false
	for _, k := range user.PublicKeys {
		if string(k) == string(marshaled) {
			matched = true
			break
		}
	}
	if !matched {
		metrics.RecordAuthOutcome("rejected")
		return nil, fmt.Errorf("access denied")
	}

	metrics.RecordAuthOutcome("accepted")
	return permissionsFor(owner, target), nil
}

func (g *Gateway) passwordCallback(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	owner, target, err := parseHandle(context.Background(), g.Store, conn.User())
	if err != nil {
		metrics.RecordAuthOutcome("rejected")
		return nil, fmt.Errorf("resolving handle: %w", err)
	}
	metrics.RecordAuthOutcome("accepted")
	return permissionsFor(owner, target), nil
}

func permissionsFor(owner model.Owner, target model.Target) *ssh.Permissions {
	return &ssh.Permissions{
		Extensions: map[string]string{
			"owner":      string(owner),
			"targetKind": fmt.Sprintf("%d", target.Kind),
			"targetName": string(target.Name),
		},
	}
}

// keepaliveInterval/keepaliveMaxMissed match spec.md §4.1's "keepalive
// (interval 30s, max missed 5)".
const (
	keepaliveInterval  = 30 * time.Second
	keepaliveMaxMissed = 5
)

// keepalive sends periodic global requests and closes the connection
// once keepaliveMaxMissed replies in a row go unanswered, the SSH
// equivalent of a TCP dead-peer timeout.
func keepalive(ctx context.Context, conn ssh.Conn) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Any reply, including a failure reply, proves the peer is
			// alive; only an error or no reply within one interval counts.
			replied := make(chan error, 1)
			go func() {
				_, _, err := conn.SendRequest("keepalive@openssh.com", true, nil)
				replied <- err
			}()
			select {
			case err := <-replied:
				if err != nil {
					missed++
				} else {
					missed = 0
				}
			case <-time.After(keepaliveInterval):
				missed++
			}
			if missed >= keepaliveMaxMissed {
				conn.Close()
				return
			}
		}
	}
}

func mustAtoi(s string) int {
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
