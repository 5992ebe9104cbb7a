// Package cmd provides Cobra CLI commands for the spaces daemon.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mocraimer/chrome-spaces/internal/cli"
)

// BuildInfo identifies the binary, injected from main at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var (
	app       *cli.App
	buildInfo = BuildInfo{Version: "dev"}

	rootCmd = &cobra.Command{
		Use:   "spaces",
		Short: "Persistent named workspaces for browser windows",
		Long: `Spaces groups browser windows into named workspaces that survive
restarts. A companion extension streams window and tab events to the daemon,
which persists each workspace and restores it on demand.

Use 'spaces run' to start the daemon, or explore the subcommands to inspect
and manage stored spaces.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "version", "schema", "path":
				return nil
			}
			var err error
			app, err = cli.NewApp()
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if app != nil {
				_ = app.Close()
			}
		},
	}
)

// SetBuildInfo records version metadata for the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("spaces %s", buildInfo.Version)
		if buildInfo.Commit != "" {
			fmt.Printf(" (%s)", buildInfo.Commit)
		}
		if buildInfo.Date != "" {
			fmt.Printf(" built %s", buildInfo.Date)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
