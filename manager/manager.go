// Package manager owns the set of running tool server subprocesses. It
// spawns each server from its definition, wires the child's stdio into a
// JSON-RPC client, and exposes start/stop/status operations. All mutation of
// the running-set happens under one manager-wide lock; individual client
// operations carry their own synchronization, so a slow tool call never
// blocks starting or stopping an unrelated server.
package manager

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cerekinorg/toolhost/client"
	"github.com/cerekinorg/toolhost/logx"
)

// ErrUnsupportedTransport is returned by StartServer before anything is
// spawned when the definition names a transport other than stdio.
var ErrUnsupportedTransport = errors.New("unsupported transport")

// DefaultStopTimeout is how long StopServer waits for graceful termination
// before force-killing the process.
const DefaultStopTimeout = 3 * time.Second

// Status values reported by Status.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Manager owns running tool servers keyed by server id.
type Manager struct {
	logger         logx.Logger
	stopTimeout    time.Duration
	requestTimeout time.Duration

	mu      sync.Mutex
	servers map[string]*RunningServer
	order   []string // server ids in start order
}

// Option configures a Manager during construction.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and the clients it creates.
func WithLogger(logger logx.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStopTimeout overrides how long StopServer waits before force-killing.
func WithStopTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.stopTimeout = timeout
		}
	}
}

// WithRequestTimeout sets the per-request timeout for the clients the
// manager creates.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.requestTimeout = timeout
		}
	}
}

// NewManager creates an empty manager. Callers own its lifecycle and should
// arrange for StopAll on shutdown.
func NewManager(options ...Option) *Manager {
	m := &Manager{
		logger:         logx.NewNopLogger(),
		stopTimeout:    DefaultStopTimeout,
		requestTimeout: client.DefaultRequestTimeout,
		servers:        make(map[string]*RunningServer),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// StartServer spawns the process described by def, wires its stdio into a
// new client, and performs the best-effort initialize handshake. If a server
// with this id is already running the existing instance is returned
// unchanged; no duplicate process is spawned.
func (m *Manager) StartServer(def ServerDefinition) (*RunningServer, error) {
	if def.Transport != "" && def.Transport != TransportStdio {
		return nil, fmt.Errorf("server %q: transport %q: %w", def.ServerID, def.Transport, ErrUnsupportedTransport)
	}

	m.mu.Lock()
	if existing, ok := m.servers[def.ServerID]; ok {
		m.mu.Unlock()
		m.logger.Debug("server %q already running (pid %d), reusing", def.ServerID, existing.PID())
		return existing, nil
	}

	rs, err := m.spawn(def)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.servers[def.ServerID] = rs
	m.order = append(m.order, def.ServerID)
	m.mu.Unlock()

	m.logger.Info("started server %q (pid %d)", def.ServerID, rs.PID())

	// The handshake is best-effort: some tool servers never acknowledge
	// initialize, and the first real tool call will surface any error.
	if err := rs.client.Initialize(); err != nil {
		m.logger.Warn("server %q: initialize handshake failed: %v", def.ServerID, err)
	}

	return rs, nil
}

// spawn starts the subprocess and builds its RunningServer. Called with the
// manager lock held; must not block on the child.
func (m *Manager) spawn(def ServerDefinition) (*RunningServer, error) {
	cmd := exec.Command(def.Command, def.Args...)

	// The definition's env is merged over the ambient process environment.
	env := os.Environ()
	for k, v := range def.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("server %q: failed to create stdin pipe: %w", def.ServerID, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("server %q: failed to create stdout pipe: %w", def.ServerID, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("server %q: failed to create stderr pipe: %w", def.ServerID, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("server %q: failed to start %q: %w", def.ServerID, def.Command, err)
	}

	transport := client.NewPipeTransport(stdout, stdin, m.logger)
	cli := client.NewClient(def.ServerID, transport,
		client.WithLogger(m.logger),
		client.WithRequestTimeout(m.requestTimeout),
	)

	rs := &RunningServer{
		Definition: def,
		InstanceID: uuid.New(),
		StartedAt:  time.Now(),
		cmd:        cmd,
		client:     cli,
		done:       make(chan struct{}),
	}

	// Stderr is not part of the protocol; drain it so the child never
	// blocks on a full pipe, and keep the lines visible at debug level.
	go m.drainStderr(def.ServerID, stderr)

	// Reap the process as soon as it exits so status reflects reality even
	// when a server dies without StopServer being called.
	go func() {
		rs.waitErr = cmd.Wait()
		close(rs.done)
		if rs.waitErr != nil {
			m.logger.Debug("server %q exited: %v", def.ServerID, rs.waitErr)
		} else {
			m.logger.Debug("server %q exited", def.ServerID)
		}
	}()

	return rs, nil
}

func (m *Manager) drainStderr(serverID string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m.logger.Debug("server %q stderr: %s", serverID, scanner.Text())
	}
}

// StopServer terminates the named server: the client is closed (failing any
// in-flight calls), the process is asked to terminate, and after the stop
// timeout it is killed. The entry is always removed from the running-set,
// even if termination errors, so state never leaks a dead process. Stopping
// a server that is not running is a no-op.
func (m *Manager) StopServer(serverID string) error {
	m.mu.Lock()
	rs, ok := m.servers[serverID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.servers, serverID)
	for i, id := range m.order {
		if id == serverID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	return m.shutdown(rs)
}

func (m *Manager) shutdown(rs *RunningServer) error {
	serverID := rs.Definition.ServerID

	// Closing the client tears down the stdio pipes; for well-behaved
	// servers EOF on stdin is already the exit signal.
	if err := rs.client.Close(); err != nil {
		m.logger.Debug("server %q: error closing client: %v", serverID, err)
	}

	if rs.cmd.Process != nil && !rs.Exited() {
		if err := rs.cmd.Process.Signal(os.Interrupt); err != nil {
			m.logger.Debug("server %q: interrupt failed: %v", serverID, err)
		}
	}

	select {
	case <-rs.done:
	case <-time.After(m.stopTimeout):
		m.logger.Warn("server %q did not exit within %v, killing", serverID, m.stopTimeout)
		if err := rs.cmd.Process.Kill(); err != nil {
			m.logger.Error("server %q: kill failed: %v", serverID, err)
			return fmt.Errorf("server %q: failed to kill process: %w", serverID, err)
		}
		<-rs.done
	}

	m.logger.Info("stopped server %q", serverID)
	return nil
}

// StopAll stops every running server. Safe to call multiple times.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.StopServer(id); err != nil {
			m.logger.Error("failed to stop server %q: %v", id, err)
		}
	}
}

// GetClient returns the client for a running server, or nil when the server
// is not running (never started, stopped, or its process has exited).
// Callers treat a nil client as a first-class "server down" outcome.
func (m *Manager) GetClient(serverID string) *client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.servers[serverID]
	if !ok || rs.Exited() {
		return nil
	}
	return rs.client
}

// Servers returns the running servers in the order they were started, which
// mirrors the order definitions were supplied in.
func (m *Manager) Servers() []*RunningServer {
	m.mu.Lock()
	defer m.mu.Unlock()

	servers := make([]*RunningServer, 0, len(m.order))
	for _, id := range m.order {
		if rs, ok := m.servers[id]; ok {
			servers = append(servers, rs)
		}
	}
	return servers
}

// Status reports, per tracked server, whether its OS process is still alive.
// A server whose process died without StopServer reports stopped.
func (m *Manager) Status() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := make(map[string]string, len(m.servers))
	for id, rs := range m.servers {
		if rs.Exited() {
			status[id] = StatusStopped
		} else {
			status[id] = StatusRunning
		}
	}
	return status
}
