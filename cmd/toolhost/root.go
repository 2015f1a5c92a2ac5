package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cerekinorg/toolhost/adapter"
	"github.com/cerekinorg/toolhost/config"
	"github.com/cerekinorg/toolhost/logx"
	"github.com/cerekinorg/toolhost/manager"
)

type cliOptions struct {
	configPath string
	timeout    time.Duration
	debug      bool
	jsonOutput bool
	logger     logx.Logger
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{
		timeout: 30 * time.Second,
		logger:  logx.NewNopLogger(),
	}

	root := &cobra.Command{
		Use:           "toolhost",
		Short:         "Launch tool servers and call their tools over stdio JSON-RPC",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger := logx.NewDefaultLogger()
			if opts.debug {
				logger.SetLevel(logx.LevelDebug)
			} else {
				logger.SetLevel(logx.LevelWarn)
			}
			opts.logger = logger
		},
	}

	bindRootFlags(root.PersistentFlags(), opts)

	root.AddCommand(
		newToolsCmd(opts),
		newCallCmd(opts),
		newStatusCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func bindRootFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVarP(&opts.configPath, "config", "c", "toolhost.yaml", "path to the tool server config file")
	fs.DurationVar(&opts.timeout, "timeout", opts.timeout, "per-request timeout")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&opts.jsonOutput, "json", false, "output JSON")
}

// startServers loads the config and starts every defined server in priority
// order. A server that fails to spawn is reported and skipped so the rest of
// the set stays usable.
func startServers(opts *cliOptions) (*manager.Manager, *adapter.Adapter, error) {
	f, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range f.MissingEnv {
		opts.logger.Warn("config references unset environment variable %q", name)
	}

	defs, err := f.Definitions()
	if err != nil {
		return nil, nil, err
	}

	mgr := manager.NewManager(
		manager.WithLogger(opts.logger),
		manager.WithRequestTimeout(opts.timeout),
	)
	for _, def := range defs {
		if _, err := mgr.StartServer(def); err != nil {
			opts.logger.Error("failed to start server %q: %v", def.ServerID, err)
		}
	}

	return mgr, adapter.NewAdapter(mgr, adapter.WithLogger(opts.logger)), nil
}
