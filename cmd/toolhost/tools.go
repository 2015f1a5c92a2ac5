package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newToolsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Start the configured servers and list the tools they advertise",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, adp, err := startServers(opts)
			if err != nil {
				return err
			}
			defer mgr.StopAll()

			available := adp.ListAvailableTools()

			if opts.jsonOutput {
				out := make(map[string]map[string]interface{}, len(available))
				for name, info := range available {
					out[name] = map[string]interface{}{
						"serverId":   info.ServerID,
						"remoteName": info.RemoteName,
						"metadata":   info.Metadata,
					}
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}

			names := make([]string, 0, len(available))
			for name := range available {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				info := available[name]
				description, _ := info.Metadata["description"].(string)
				if description != "" {
					cmd.Printf("%s\t(%s)\t%s\n", name, info.ServerID, description)
				} else {
					cmd.Printf("%s\t(%s)\n", name, info.ServerID)
				}
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no tools available")
			}
			return nil
		},
	}
}
