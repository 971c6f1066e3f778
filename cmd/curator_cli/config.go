package main

import (
	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/internal/actionfile"
	"github.com/curatorhq/curator/internal/config"
)

// newConfigCommand groups config-file linting subcommands: "config check"
// loads and validates a config file (and optionally an action file) without
// connecting to a cluster, surfacing ConfigError detail for CI pipelines
// that want to lint files ahead of a real run.
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "inspect and validate Curator configuration",
	}
	cmd.AddCommand(newConfigCheckCommand())
	return cmd
}

func newConfigCheckCommand() *cobra.Command {
	var actionFile string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "validate a config file and, optionally, an action file without connecting to a cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.Elasticsearch.Validate(); err != nil {
				return err
			}
			cmd.Printf("config ok: %d elasticsearch host(s), master_only=%t\n", len(cfg.Elasticsearch.Hosts), cfg.Elasticsearch.MasterOnly)

			if actionFile != "" {
				entries, err := actionfile.LoadFile(actionFile)
				if err != nil {
					return err
				}
				cmd.Printf("action file ok: %d entries\n", len(entries))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actionFile, "action-file", "", "also validate this action file")
	return cmd
}
