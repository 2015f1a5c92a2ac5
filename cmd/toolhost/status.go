package main

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Start the configured servers and report whether each is running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, err := startServers(opts)
			if err != nil {
				return err
			}
			defer mgr.StopAll()

			status := mgr.Status()

			if opts.jsonOutput {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}

			ids := make([]string, 0, len(status))
			for id := range status {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				cmd.Printf("%s\t%s\n", id, status[id])
			}
			return nil
		},
	}
}
