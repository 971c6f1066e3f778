// Command curator_cli exposes every action-catalog entry as its own
// subcommand, plus a deepfreeze subcommand group (setup/status/rotate/
// thaw/refreeze/cleanup/repair-metadata), per spec §6's "single-action
// CLI" requirement. Grounded in the teacher's cobra command-tree idiom
// (cli/root.go's RootCmd + persistent flags + viper precedence).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/internal/buildinfo"
	"github.com/curatorhq/curator/internal/curatorerr"
)

var (
	cfgFile  string
	dryRun   bool
	porcelain bool
)

var rootCmd = &cobra.Command{
	Use:   "curator_cli",
	Short: "run a single Curator action or deepfreeze operation",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.curator/curator.yml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log the planned operation without executing it")
	rootCmd.PersistentFlags().BoolVar(&porcelain, "porcelain", false, "machine-readable tab-separated output (status/thaw only)")

	for _, kind := range actionKinds {
		rootCmd.AddCommand(newActionCommand(kind))
	}
	rootCmd.AddCommand(newDeepfreezeCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print build and version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Get()
			cmd.Printf("curator_cli %s (go %s, revision %s)\n", info.ModuleVersion, info.GoVersion, info.VCSRevision)
			return nil
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(curatorerr.ExitCode(err))
	}
}
