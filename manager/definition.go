package manager

import (
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/cerekinorg/toolhost/client"
)

// TransportKind identifies how the manager talks to a spawned tool server.
// Only stdio pipes are supported.
type TransportKind string

const TransportStdio TransportKind = "stdio"

// ServerDefinition describes one tool server to launch: the command to run,
// its arguments and environment, and where it sits in the caller's priority
// order. Definitions are treated as immutable once handed to the manager;
// env values are expected to be environment-expanded already.
type ServerDefinition struct {
	ServerID    string
	DisplayName string
	Command     string
	Args        []string
	Env         map[string]string
	Transport   TransportKind
	Priority    int
}

// RunningServer pairs a live subprocess with the client speaking to it. It
// is owned exclusively by the manager; callers interact through Client.
type RunningServer struct {
	Definition ServerDefinition
	InstanceID uuid.UUID
	StartedAt  time.Time

	cmd    *exec.Cmd
	client *client.Client

	// done closes when the process has been reaped.
	done    chan struct{}
	waitErr error
}

// Client returns the JSON-RPC client bound to this server's stdio.
func (s *RunningServer) Client() *client.Client { return s.client }

// PID returns the OS process id, or 0 if the process never started.
func (s *RunningServer) PID() int {
	if s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return 0
}

// Exited reports whether the OS process has exited, whether or not
// StopServer was ever called.
func (s *RunningServer) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
