package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/marma/whistler/internal/exectransport"
	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/logger"
	"github.com/marma/whistler/internal/metrics"
	"github.com/marma/whistler/internal/model"
	"github.com/marma/whistler/internal/tui"
)

// readinessDeadline bounds how long instance mode waits for a pod to
// reach Running before reporting failure, per spec.md §4.2/§7.
const readinessDeadline = 60 * time.Second

// terminatingPollInterval is how often the coordinator re-checks a
// Terminating pod for disappearance before re-resolving the instance.
const terminatingPollInterval = 500 * time.Millisecond

// Coordinator drives one SSH session end-to-end: mode dispatch, pod
// readiness, shell bind, agent bridge, and ephemeral teardown. It is
// grounded on WhistlerSession in
// original_source/whistler/server.py, restructured so that the
// per-session request loop (pty-req/shell/window-change/auth-agent-req)
// runs as one goroutine for the session's lifetime instead of asyncio
// callbacks mutating shared session state.
type Coordinator struct {
	Store           instancestore.InstanceStore
	NewExec         func(namespace string) exectransport.ExecTransport
	Menu            tui.Menu
	StaticSocatPath string
}

// sessionRequests is what the request-loop goroutine extracts from the
// SSH connection's out-of-band requests over the session's lifetime.
type sessionRequests struct {
	ptyRequested bool
	agentWanted  bool
	initialSize  model.TerminalSize
	shellReady   chan struct{}
	resizes      chan model.TerminalSize
}

// Run drives the session. It returns when the channel closes or the
// bound shell exits; cleanup of ephemeral instances and transient
// resources always runs before it returns, per spec.md §5's
// cancellation rules.
func (c *Coordinator) Run(ctx context.Context, conn ssh.Conn, channel ssh.Channel, requests <-chan *ssh.Request, sess *Session) error {
	sr := &sessionRequests{
		shellReady: make(chan struct{}),
		resizes:    make(chan model.TerminalSize, 1),
	}
	go c.serviceRequests(ctx, channel, requests, sr, sess)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-sr.shellReady:
	}

	sess.InitialWidth = sr.initialSize.Width
	sess.InitialHeight = sr.initialSize.Height

	metrics.SessionStarted(string(sess.Owner))
	defer metrics.SessionEnded(string(sess.Owner))

	var cleanupErr error
	defer func() {
		if sess.IsEphemeral {
			if name, ok := sess.ActiveInstance(); ok {
				if err := c.Store.DeleteInstance(context.Background(), sess.Owner, name); err != nil {
					logger.Session().Warn().Err(err).Str("instance", string(name)).Msg("ephemeral instance cleanup failed")
				}
			}
		}
	}()

	switch sess.Target.Kind {
	case model.TargetMenu:
		return c.runMenu(channel, sr, sess.Owner)
	case model.TargetTemplate:
		if err := c.createEphemeral(ctx, sess); err != nil {
			fmt.Fprintf(channel, "Failed to start instance: %v\r\n", err)
			return err
		}
		fallthrough
	case model.TargetInstance:
		cleanupErr = c.runInstance(ctx, conn, channel, sess, sr)
	}
	return cleanupErr
}

// serviceRequests answers the SSH channel's out-of-band requests for
// the session's full lifetime, not just until the shell starts, since
// window-change can arrive at any point afterward.
func (c *Coordinator) serviceRequests(ctx context.Context, channel ssh.Channel, requests <-chan *ssh.Request, sr *sessionRequests, sess *Session) {
	shellStarted := false
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			switch req.Type {
			case "pty-req":
				w, h, term := parsePtyReq(req.Payload)
				sr.ptyRequested = true
				sr.initialSize = model.TerminalSize{Width: w, Height: h}
				sess.TermType = term
				req.Reply(true, nil)
			case "shell":
				req.Reply(true, nil)
				if !shellStarted {
					shellStarted = true
					close(sr.shellReady)
				}
			case "window-change":
				w, h := parseWindowChange(req.Payload)
				if req.WantReply {
					req.Reply(true, nil)
				}
				select {
				case sr.resizes <- model.TerminalSize{Width: w, Height: h}:
				default:
				}
			case "auth-agent-req@openssh.com":
				sr.agentWanted = true
				sess.AgentRequested = true
				if req.WantReply {
					req.Reply(true, nil)
				}
			default:
				if req.WantReply {
					req.Reply(false, nil)
				}
			}
		}
	}
}

func (c *Coordinator) runMenu(channel ssh.Channel, sr *sessionRequests, owner model.Owner) error {
	if c.Menu == nil {
		fmt.Fprint(channel, "menu unavailable\r\n")
		return nil
	}
	return c.Menu.Run(newChannelBackend(channel, sr.resizes), owner)
}

// createEphemeral mints an ephemeral instance for template mode. Its
// short name is "{template-short-name}-{8 hex chars}"; the full name
// adds the owner prefix, e.g. "alice-small-1a2b3c4d".
func (c *Coordinator) createEphemeral(ctx context.Context, sess *Session) error {
	templateName := sess.Target.Name
	templates, err := c.Store.ListTemplates(ctx, sess.Owner)
	if err != nil {
		return fmt.Errorf("listing templates: %w", err)
	}
	var tmpl *model.Template
	for i := range templates {
		if templates[i].Name == templateName {
			tmpl = &templates[i]
			break
		}
	}
	if tmpl == nil {
		return fmt.Errorf("template %q not found", templateName)
	}

	hex := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	short := model.ShortName(fmt.Sprintf("%s-%s", templateName, hex))

	if err := c.Store.CreateInstance(ctx, sess.Owner, tmpl.FullName, short, true); err != nil {
		return fmt.Errorf("creating ephemeral instance: %w", err)
	}

	sess.IsEphemeral = true
	sess.SetActiveInstance(short)
	sess.Target = model.Target{Kind: model.TargetInstance, Name: short}
	return nil
}

// runInstance resolves the instance to a Running pod, sends the MOTD,
// binds the shell, and runs the agent bridge, per spec.md §4.2.
func (c *Coordinator) runInstance(ctx context.Context, conn ssh.Conn, channel ssh.Channel, sess *Session, sr *sessionRequests) error {
	name, _ := sess.ActiveInstance()
	inst, err := c.waitForPod(ctx, channel, sess.Owner, name)
	if err != nil {
		fmt.Fprintf(channel, "Failed to start instance: %v\r\n", err)
		return err
	}

	channel.Write(buildMOTD(motdInput{
		InstanceName:      name,
		PersonalMountPath: "/data",
		Volumes:           inst.Mounts,
		IsEphemeral:       sess.IsEphemeral,
		Preemptible:       inst.Preemptible,
	}))

	ns := instancestore.PerUserNamespace(sess.Owner)
	exec := c.NewExec(ns)

	if sess.AgentRequested {
		sess.PodSocketPath = fmt.Sprintf("/tmp/agent-%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
		bridge := newAgentBridge(exec, conn, c.StaticSocatPath)
		go func() {
			if err := bridge.Run(ctx, inst.PodName, "main", sess.PodSocketPath); err != nil {
				logger.Session().Warn().Err(err).Msg("agent bridge ended")
			}
		}()
	}

	cmd := []string{"/bin/bash"}
	if sess.PodSocketPath != "" {
		cmd = []string{"env", "SSH_AUTH_SOCK=" + sess.PodSocketPath, "/bin/bash"}
	}

	tty := sr.ptyRequested
	stream, err := exec.Exec(ctx, inst.PodName, "main", cmd, tty)
	if err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}
	if tty && stream.Resize != nil {
		stream.Resize <- exectransport.TerminalSize{Width: sess.InitialWidth, Height: sess.InitialHeight}
	}

	coalescer := newResizeCoalescer(func(size model.TerminalSize) {
		if stream.Resize != nil {
			select {
			case stream.Resize <- exectransport.TerminalSize{Width: size.Width, Height: size.Height}:
			default:
			}
		}
	})
	defer coalescer.Stop()

	resizeRelay := make(chan model.TerminalSize)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case size, ok := <-sr.resizes:
				if !ok {
					return
				}
				coalescer.Resize(size)
			}
		}
	}()

	return bindShell(ctx, channel, stream, tty, resizeRelay)
}

// waitForPod implements the instance-mode readiness wait: Terminating
// pods are awaited to disappear and re-resolved; absent/not-Running
// pods are nudged via the last-connect annotation and polled with the
// overall 60 s deadline, per spec.md §4.2.
func (c *Coordinator) waitForPod(ctx context.Context, channel ssh.Channel, owner model.Owner, name model.ShortName) (model.Instance, error) {
	for {
		inst, ok, err := c.Store.GetInstance(ctx, owner, name)
		if err != nil {
			return model.Instance{}, err
		}
		if !ok {
			return model.Instance{}, fmt.Errorf("instance %q not found", name)
		}
		if inst.Status == model.StatusTerminating {
			if err := c.pollUntilGone(ctx, owner, name); err != nil {
				return model.Instance{}, err
			}
			continue
		}
		if inst.Status == model.StatusRunning {
			return inst, nil
		}

		if err := c.Store.PatchInstanceAnnotation(ctx, owner, name, "whistler.io/last-connect", instancestore.NowUnixString(time.Now())); err != nil {
			logger.Session().Warn().Err(err).Msg("annotating instance for reconciler nudge failed")
		}
		return c.pollUntilRunning(ctx, channel, owner, name)
	}
}

func (c *Coordinator) pollUntilGone(ctx context.Context, owner model.Owner, name model.ShortName) error {
	ticker := time.NewTicker(terminatingPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			inst, ok, err := c.Store.GetInstance(ctx, owner, name)
			if err != nil {
				return err
			}
			if !ok || inst.Status != model.StatusTerminating {
				return nil
			}
		}
	}
}

func (c *Coordinator) pollUntilRunning(ctx context.Context, channel ssh.Channel, owner model.Owner, name model.ShortName) (model.Instance, error) {
	deadline := time.Now().Add(readinessDeadline)
	ticker := time.NewTicker(terminatingPollInterval)
	defer ticker.Stop()

	var lastStatus model.InstanceStatus
	fmt.Fprintf(channel, "Instance status: ")
	for {
		select {
		case <-ctx.Done():
			return model.Instance{}, ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return model.Instance{}, fmt.Errorf("timed out waiting for instance to start")
			}
			inst, ok, err := c.Store.GetInstance(ctx, owner, name)
			if err != nil {
				return model.Instance{}, err
			}
			if !ok {
				continue
			}
			if inst.Status == model.StatusRunning {
				fmt.Fprint(channel, "\r\n")
				return inst, nil
			}
			if inst.Status != lastStatus {
				if lastStatus != "" {
					fmt.Fprint(channel, "\r\n")
				}
				fmt.Fprintf(channel, "%s ", inst.Status)
				lastStatus = inst.Status
			} else {
				fmt.Fprint(channel, ".")
			}
		}
	}
}

// ptyRequestPayload mirrors RFC 4254 §6.2's pty-req body: terminal
// character dimensions first, pixel dimensions (unused here) after.
type ptyRequestPayload struct {
	Term     string
	Columns  uint32
	Rows     uint32
	PixelW   uint32
	PixelH   uint32
	Modelist string
}

type windowChangePayload struct {
	Columns uint32
	Rows    uint32
	PixelW  uint32
	PixelH  uint32
}

func parsePtyReq(payload []byte) (width, height uint16, term string) {
	var req ptyRequestPayload
	if err := ssh.Unmarshal(payload, &req); err != nil {
		return 80, 24, ""
	}
	return uint16(req.Columns), uint16(req.Rows), req.Term
}

func parseWindowChange(payload []byte) (width, height uint16) {
	var req windowChangePayload
	if err := ssh.Unmarshal(payload, &req); err != nil {
		return 80, 24
	}
	return uint16(req.Columns), uint16(req.Rows)
}
