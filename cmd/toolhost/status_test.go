package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerekinorg/toolhost/manager"
)

func writeStatusFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	script := filepath.Join(dir, "quiet.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\nwhile IFS= read -r line; do :; done\n"), 0755),
		"Failed to write test server script")

	cfg := filepath.Join(dir, "toolhost.yaml")
	content := fmt.Sprintf("toolServers:\n  quiet:\n    command: %s\n", script)
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0644), "Failed to write test config")
	return cfg
}

func TestStatusCommand(t *testing.T) {
	cfg := writeStatusFixture(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	// The quiet server never answers initialize; keep the handshake short.
	root.SetArgs([]string{"status", "-c", cfg, "--timeout", "200ms"})

	require.NoError(t, root.Execute(), "status should succeed against a startable config")
	assert.Contains(t, out.String(), "quiet", "Output should name the configured server")
	assert.Contains(t, out.String(), manager.StatusRunning, "A live server should report as running")
}

func TestStatusCommandJSON(t *testing.T) {
	cfg := writeStatusFixture(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"status", "-c", cfg, "--timeout", "200ms", "--json"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), fmt.Sprintf("%q: %q", "quiet", manager.StatusRunning),
		"JSON output should map server id to status")
}
