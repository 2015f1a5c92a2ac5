// Package adapter flattens the tools advertised by every running server into
// a single named surface the caller can register in its own dispatch table,
// and routes each call back to the owning server at call time.
package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/cerekinorg/toolhost/client"
	"github.com/cerekinorg/toolhost/logx"
	"github.com/cerekinorg/toolhost/manager"
	"github.com/cerekinorg/toolhost/protocol"
)

// FailurePrefix marks strings a ToolFunc returns in place of an error.
// Callers pattern-match on it, so it must stay stable.
const FailurePrefix = "ERROR: "

// ToolInfo records where a discovered tool lives and what its server said
// about it.
type ToolInfo struct {
	ServerID   string
	RemoteName string
	Metadata   map[string]interface{}
}

// ToolFunc invokes one remote tool. It never returns an error: failures come
// back as strings starting with FailurePrefix, so a dead server or a bad
// call degrades a single tool instead of the caller's dispatch loop.
type ToolFunc func(arguments map[string]interface{}) string

// ServerSource is the slice of the manager the adapter needs: the running
// servers in definition order and per-server client lookup.
type ServerSource interface {
	Servers() []*manager.RunningServer
	GetClient(serverID string) *client.Client
}

// Adapter discovers and routes tools across the servers of one source.
type Adapter struct {
	source ServerSource
	logger logx.Logger
}

// Option configures an Adapter during construction.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(logger logx.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter creates an adapter over the given server source, typically a
// *manager.Manager.
func NewAdapter(source ServerSource, options ...Option) *Adapter {
	a := &Adapter{
		source: source,
		logger: logx.NewNopLogger(),
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// ListAvailableTools asks every running server for its tools and returns a
// flat map of tool name to origin. A server that errors or advertises
// nothing contributes nothing and does not abort discovery for the rest.
// When two servers advertise the same tool name, the later server in
// iteration order wins; callers layer servers by priority and rely on this
// deterministic override.
func (a *Adapter) ListAvailableTools() map[string]ToolInfo {
	available := make(map[string]ToolInfo)

	for _, rs := range a.source.Servers() {
		serverID := rs.Definition.ServerID
		cli := a.source.GetClient(serverID)
		if cli == nil {
			a.logger.Debug("server %q not running, skipping discovery", serverID)
			continue
		}
		tools, err := cli.ListTools()
		if err != nil {
			a.logger.Warn("server %q: tools/list failed: %v", serverID, err)
			continue
		}
		for _, tool := range tools {
			available[tool.Name] = ToolInfo{
				ServerID:   serverID,
				RemoteName: tool.Name,
				Metadata:   toolMetadata(tool),
			}
		}
	}
	return available
}

func toolMetadata(tool protocol.Tool) map[string]interface{} {
	metadata := make(map[string]interface{}, 2)
	if tool.Description != "" {
		metadata["description"] = tool.Description
	}
	if tool.InputSchema != nil {
		metadata["inputSchema"] = tool.InputSchema
	}
	return metadata
}

// BuildToolCallable returns a function bound to one tool on one server. The
// client is re-resolved on every call, not at bind time, so a server dying
// between discovery and use yields a failure string rather than a crash.
func (a *Adapter) BuildToolCallable(serverID, toolName string) ToolFunc {
	return func(arguments map[string]interface{}) string {
		cli := a.source.GetClient(serverID)
		if cli == nil {
			return fmt.Sprintf("%stool server %q is not running", FailurePrefix, serverID)
		}
		result, err := cli.CallTool(toolName, arguments)
		if err != nil {
			return fmt.Sprintf("%stool %q failed: %v", FailurePrefix, toolName, err)
		}
		return Stringify(result)
	}
}

// Stringify converts a raw tool result payload into its string form: strings
// pass through, everything else is rendered as compact JSON.
func Stringify(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

var _ ServerSource = (*manager.Manager)(nil)
