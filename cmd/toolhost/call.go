package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cerekinorg/toolhost/adapter"
)

func newCallCmd(opts *cliOptions) *cobra.Command {
	var rawArgs []string

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call one tool by name and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolName := args[0]

			arguments, err := parseToolArgs(rawArgs)
			if err != nil {
				return err
			}

			mgr, adp, err := startServers(opts)
			if err != nil {
				return err
			}
			defer mgr.StopAll()

			available := adp.ListAvailableTools()
			info, ok := available[toolName]
			if !ok {
				return fmt.Errorf("tool %q not advertised by any running server", toolName)
			}

			callable := adp.BuildToolCallable(info.ServerID, info.RemoteName)
			result := callable(arguments)
			cmd.Println(result)

			if strings.HasPrefix(result, adapter.FailurePrefix) {
				return fmt.Errorf("tool call failed")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "tool argument as key=value (repeatable; values parse as JSON when possible)")
	return cmd
}

// parseToolArgs turns repeated key=value flags into the arguments map.
// Values that parse as JSON keep their type; everything else is a string.
func parseToolArgs(rawArgs []string) (map[string]interface{}, error) {
	arguments := make(map[string]interface{}, len(rawArgs))
	for _, raw := range rawArgs {
		key, value, found := strings.Cut(raw, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", raw)
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			arguments[key] = decoded
		} else {
			arguments[key] = value
		}
	}
	return arguments, nil
}
