package adapter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerekinorg/toolhost/client"
	"github.com/cerekinorg/toolhost/manager"
	"github.com/cerekinorg/toolhost/protocol"
)

// stubSource stands in for the manager: a fixed server order and a client
// map that tests mutate to simulate servers dying.
type stubSource struct {
	order   []*manager.RunningServer
	clients map[string]*client.Client
}

func (s *stubSource) Servers() []*manager.RunningServer { return s.order }

func (s *stubSource) GetClient(serverID string) *client.Client { return s.clients[serverID] }

func newStubSource() *stubSource {
	return &stubSource{clients: make(map[string]*client.Client)}
}

// addServer wires a scripted in-memory server into the source under the
// given id, advertising the given tools and echoing tool calls.
func (s *stubSource) addServer(t *testing.T, serverID string, tools []protocol.Tool) {
	t.Helper()
	transport := client.NewInMemoryTransport()
	go transport.Serve(func(req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
		switch req.Method {
		case protocol.MethodListTools:
			return protocol.NewSuccessResponse(req.ID, protocol.ListToolsResult{Tools: tools})
		case protocol.MethodCallTool:
			var params protocol.CallToolRequestParams
			if err := protocol.UnmarshalPayload(req.Params, &params); err != nil {
				return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, err.Error(), nil)
			}
			return protocol.NewSuccessResponse(req.ID, map[string]interface{}{
				"server":    serverID,
				"tool":      params.Name,
				"arguments": params.Arguments,
			})
		default:
			return protocol.NewSuccessResponse(req.ID, nil)
		}
	})

	cli := client.NewClient(serverID, transport, client.WithRequestTimeout(2*time.Second))
	t.Cleanup(func() { _ = cli.Close() })

	s.order = append(s.order, &manager.RunningServer{
		Definition: manager.ServerDefinition{ServerID: serverID, Transport: manager.TransportStdio},
	})
	s.clients[serverID] = cli
}

func TestListAvailableToolsAcrossServers(t *testing.T) {
	source := newStubSource()
	source.addServer(t, "files", []protocol.Tool{
		{Name: "read_file", Description: "reads a file"},
		{Name: "write_file"},
	})
	source.addServer(t, "web", []protocol.Tool{
		{Name: "fetch", Description: "fetches a URL"},
	})

	a := NewAdapter(source)
	available := a.ListAvailableTools()

	require.Len(t, available, 3, "All tools from all servers should be discovered")
	assert.Equal(t, "files", available["read_file"].ServerID)
	assert.Equal(t, "read_file", available["read_file"].RemoteName)
	assert.Equal(t, "reads a file", available["read_file"].Metadata["description"])
	assert.Equal(t, "web", available["fetch"].ServerID)
}

func TestListAvailableToolsLastWriteWins(t *testing.T) {
	source := newStubSource()
	source.addServer(t, "base", []protocol.Tool{
		{Name: "search", Description: "base search"},
	})
	source.addServer(t, "override", []protocol.Tool{
		{Name: "search", Description: "override search"},
	})

	a := NewAdapter(source)
	available := a.ListAvailableTools()

	require.Len(t, available, 1, "Colliding tool names must collapse to a single entry")
	assert.Equal(t, "override", available["search"].ServerID, "The later server in iteration order must win")
	assert.Equal(t, "override search", available["search"].Metadata["description"])
}

func TestListAvailableToolsSkipsFailingServer(t *testing.T) {
	source := newStubSource()

	// A server whose tools/list always errors.
	transport := client.NewInMemoryTransport()
	go transport.Serve(func(req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, "boom", nil)
	})
	broken := client.NewClient("broken", transport, client.WithRequestTimeout(2*time.Second))
	t.Cleanup(func() { _ = broken.Close() })
	source.order = append(source.order, &manager.RunningServer{
		Definition: manager.ServerDefinition{ServerID: "broken"},
	})
	source.clients["broken"] = broken

	source.addServer(t, "healthy", []protocol.Tool{{Name: "fetch"}})

	a := NewAdapter(source)
	available := a.ListAvailableTools()

	require.Len(t, available, 1, "A failing server must not abort discovery for the others")
	assert.Equal(t, "healthy", available["fetch"].ServerID)
}

func TestBuildToolCallableRoundTrip(t *testing.T) {
	source := newStubSource()
	source.addServer(t, "echo-server", []protocol.Tool{{Name: "echo"}})

	a := NewAdapter(source)
	callable := a.BuildToolCallable("echo-server", "echo")

	result := callable(map[string]interface{}{"x": 1})
	assert.False(t, strings.HasPrefix(result, FailurePrefix), "Successful call must not return a failure string: %s", result)
	assert.Contains(t, result, "1", "Stringified result should contain the echoed argument")
	assert.Contains(t, result, "echo-server", "Stringified result should carry the payload the server returned")
}

func TestBuildToolCallableServerStopped(t *testing.T) {
	source := newStubSource()
	source.addServer(t, "doomed", []protocol.Tool{{Name: "echo"}})

	a := NewAdapter(source)
	callable := a.BuildToolCallable("doomed", "echo")

	// The server dies between discovery and use.
	delete(source.clients, "doomed")

	result := callable(map[string]interface{}{"x": 1})
	assert.True(t, strings.HasPrefix(result, FailurePrefix), "A stopped server must yield a failure string, got: %s", result)
	assert.Contains(t, result, "doomed", "Failure string should name the server")
}

func TestBuildToolCallableCallError(t *testing.T) {
	source := newStubSource()

	transport := client.NewInMemoryTransport()
	go transport.Serve(func(req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, "tool exploded", nil)
	})
	cli := client.NewClient("flaky", transport, client.WithRequestTimeout(2*time.Second))
	t.Cleanup(func() { _ = cli.Close() })
	source.order = append(source.order, &manager.RunningServer{
		Definition: manager.ServerDefinition{ServerID: "flaky"},
	})
	source.clients["flaky"] = cli

	a := NewAdapter(source)
	result := a.BuildToolCallable("flaky", "explode")(nil)

	assert.True(t, strings.HasPrefix(result, FailurePrefix), "A server error must come back as a failure string")
	assert.Contains(t, result, "tool exploded", "Failure string should embed the server's error message")
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil), "Nil result stringifies to empty")
	assert.Equal(t, "plain", Stringify("plain"), "String results pass through unquoted")
	assert.Equal(t, `{"x":1}`, Stringify(map[string]interface{}{"x": 1}), "Maps render as compact JSON")
	assert.Equal(t, `[1,2]`, Stringify([]interface{}{1, 2}), "Slices render as compact JSON")
}
