package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cerekinorg/toolhost/config"
)

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file without starting any server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			defs, err := f.Definitions()
			if err != nil {
				return err
			}

			for _, def := range defs {
				cmd.Printf("%s\tpriority=%d\t%s %v\n", def.ServerID, def.Priority, def.Command, def.Args)
			}
			for _, name := range f.MissingEnv {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: unset environment variable %q\n", name)
			}
			return nil
		},
	}
}
