// crater [path], crater build [path]
package cmd

import (
	"fmt"
	"os"

	"github.com/crater-build/crater/internal/builder"
	"github.com/crater-build/crater/internal/msg"
	"github.com/spf13/cobra"
)

// workspaceDir returns the workspace path argument, defaulting to "."
func workspaceDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func newBuilder(args []string) *builder.Builder {
	b, err := builder.NewBuilderInDirectory(workspaceDir(args))
	if err != nil {
		msg.Fatal("%v", err)
	}
	return b
}

func doBuild(cmd *cobra.Command, args []string) {
	if err := newBuilder(args).Build(); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crater [workspace path]",
	Short: "Incremental multi-unit build orchestrator",
	Long: `Incremental multi-unit build orchestrator. Builds every stale unit
declared in Crater.toml and stages the artifacts into the deployment tree.`,
	Args: cobra.MaximumNArgs(1),
	Run:  doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [workspace path]",
	Short: "Build all stale units and stage their artifacts",
	Long:  `Build all stale units and stage their artifacts. If no workspace path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	// crater build subcommand
	rootCmd.AddCommand(buildCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
