package manager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal JSON-RPC responder: answers initialize, tools/list and tools/call
// with canned frames carrying the request's id, and exits on stdin EOF.
const fakeServerScript = `#!/bin/bash
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":[ ]*\([0-9][0-9]*\).*/\1/p')
  [ -z "$id" ] && continue
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":"2025-03-26","serverInfo":{"name":"fake","version":"1.0"}}}\n' "$id" ;;
    *'"method":"tools/list"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"tools":[{"name":"echo","description":"echoes its arguments"}]}}\n' "$id" ;;
    *'"method":"tools/call"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"x":1}}\n' "$id" ;;
    *)
      printf '{"jsonrpc":"2.0","id":%s,"result":null}\n' "$id" ;;
  esac
done
`

// Sits idle until stdin closes, then exits promptly.
const quietServerScript = `#!/bin/bash
while IFS= read -r line; do :; done
`

// Ignores the interrupt the manager sends on stop, forcing the kill path.
const stubbornServerScript = `#!/bin/bash
trap '' INT TERM
while :; do sleep 1; done
`

func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0755), "Failed to write test server script")
	return path
}

func TestStartServerIdempotent(t *testing.T) {
	m := NewManager(WithRequestTimeout(2 * time.Second))
	defer m.StopAll()
	script := writeScript(t, "fake.sh", fakeServerScript)

	def := ServerDefinition{ServerID: "fake", Command: script, Transport: TransportStdio}

	first, err := m.StartServer(def)
	require.NoError(t, err, "First start should succeed")

	second, err := m.StartServer(def)
	require.NoError(t, err, "Second start should succeed")

	assert.Same(t, first, second, "Starting the same server id twice must reuse the instance")
	assert.Equal(t, first.InstanceID, second.InstanceID)
	assert.Equal(t, first.PID(), second.PID(), "No duplicate process may be spawned")
	assert.Len(t, m.Servers(), 1, "Only one running server should be tracked")
}

func TestStartServerUnsupportedTransport(t *testing.T) {
	m := NewManager()
	defer m.StopAll()

	_, err := m.StartServer(ServerDefinition{ServerID: "ws", Command: "true", Transport: "websocket"})
	require.Error(t, err, "Non-stdio transports must fail fast")
	assert.ErrorIs(t, err, ErrUnsupportedTransport)
	assert.Empty(t, m.Status(), "Nothing should be recorded when the transport is rejected")
}

func TestStartServerSpawnFailure(t *testing.T) {
	m := NewManager()
	defer m.StopAll()

	_, err := m.StartServer(ServerDefinition{ServerID: "ghost", Command: "/definitely/not/a/command"})
	require.Error(t, err, "A bad command must surface as a start error")
	assert.Empty(t, m.Status(), "No RunningServer may be recorded after a spawn failure")
	assert.Nil(t, m.GetClient("ghost"), "No client may be handed out after a spawn failure")
}

func TestStopServerGraceful(t *testing.T) {
	// The quiet server never answers initialize; keep the handshake short.
	m := NewManager(WithRequestTimeout(200 * time.Millisecond))
	script := writeScript(t, "quiet.sh", quietServerScript)

	_, err := m.StartServer(ServerDefinition{ServerID: "quiet", Command: script})
	require.NoError(t, err)

	require.NoError(t, m.StopServer("quiet"), "Graceful stop should succeed")
	assert.Empty(t, m.Status(), "Stopped server must leave the running-set")
	assert.Nil(t, m.GetClient("quiet"), "Stopped server must not hand out a client")

	require.NoError(t, m.StopServer("quiet"), "Stopping a non-running server is a no-op")
}

func TestStopServerForceKill(t *testing.T) {
	m := NewManager(
		WithStopTimeout(200*time.Millisecond),
		WithRequestTimeout(200*time.Millisecond),
	)
	script := writeScript(t, "stubborn.sh", stubbornServerScript)

	rs, err := m.StartServer(ServerDefinition{ServerID: "stubborn", Command: script})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, m.StopServer("stubborn"), "Force-kill path should still succeed")
	assert.Less(t, time.Since(start), 5*time.Second, "Stop must not wait on a stubborn process forever")

	assert.True(t, rs.Exited(), "Process should be dead after the kill")
	assert.Empty(t, m.Status(), "Killed server must leave the running-set")
}

func TestStatusReflectsProcessDeath(t *testing.T) {
	m := NewManager()
	defer m.StopAll()
	script := writeScript(t, "oneshot.sh", "#!/bin/bash\nexit 0\n")

	_, err := m.StartServer(ServerDefinition{ServerID: "oneshot", Command: script})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return m.Status()["oneshot"] == StatusStopped
	}, 5*time.Second, 50*time.Millisecond, "Status must report stopped once the process exits on its own")

	assert.Nil(t, m.GetClient("oneshot"), "A dead server must not hand out a client")
}

func TestStopAll(t *testing.T) {
	m := NewManager(WithRequestTimeout(200 * time.Millisecond))
	script := writeScript(t, "quiet.sh", quietServerScript)

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.StartServer(ServerDefinition{ServerID: id, Command: script})
		require.NoError(t, err)
	}
	require.Len(t, m.Servers(), 3)

	m.StopAll()
	assert.Empty(t, m.Status(), "StopAll should stop every server")

	// Safe to call again.
	m.StopAll()
}

func TestServersPreserveStartOrder(t *testing.T) {
	m := NewManager(WithRequestTimeout(200 * time.Millisecond))
	defer m.StopAll()
	script := writeScript(t, "quiet.sh", quietServerScript)

	ids := []string{"third", "first", "second"}
	for _, id := range ids {
		_, err := m.StartServer(ServerDefinition{ServerID: id, Command: script})
		require.NoError(t, err)
	}

	servers := m.Servers()
	require.Len(t, servers, 3)
	for i, rs := range servers {
		assert.Equal(t, ids[i], rs.Definition.ServerID, "Servers must come back in the order they were started")
	}
}

func TestRoundTripAgainstRealProcess(t *testing.T) {
	m := NewManager(WithRequestTimeout(5 * time.Second))
	defer m.StopAll()
	script := writeScript(t, "fake.sh", fakeServerScript)

	rs, err := m.StartServer(ServerDefinition{ServerID: "fake", Command: script})
	require.NoError(t, err)
	assert.True(t, rs.Client().Initialized(), "Handshake against the fake server should complete")

	tools, err := rs.Client().ListTools()
	require.NoError(t, err, "tools/list should succeed against the fake server")
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	result, err := rs.Client().CallTool("echo", map[string]interface{}{"x": 1})
	require.NoError(t, err, "tools/call should succeed against the fake server")
	resultMap, ok := result.(map[string]interface{})
	require.True(t, ok, "Result should be the raw payload map")
	assert.Equal(t, float64(1), resultMap["x"])
}

func TestServerEnvPassedToProcess(t *testing.T) {
	m := NewManager(WithRequestTimeout(2 * time.Second))
	defer m.StopAll()

	// Replies to any request with the value of GREETING from its env.
	script := writeScript(t, "env.sh", `#!/bin/bash
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":[ ]*\([0-9][0-9]*\).*/\1/p')
  [ -z "$id" ] && continue
  printf '{"jsonrpc":"2.0","id":%s,"result":"%s"}\n' "$id" "$GREETING"
done
`)

	rs, err := m.StartServer(ServerDefinition{
		ServerID: "env",
		Command:  script,
		Env:      map[string]string{"GREETING": "hello-from-env"},
	})
	require.NoError(t, err)

	result, err := rs.Client().Request("ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello-from-env", result, "Definition env must be merged into the child environment")
}
