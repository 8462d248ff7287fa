// crater run [path]
package cmd

import (
	"github.com/crater-build/crater/internal/msg"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [workspace path]",
	Short: "Build all units, then launch the runtime",
	Long:  `Build all units, stage their artifacts, then launch the configured runtime against the deployment tree.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := newBuilder(args).BuildAndRun(); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// crater run subcommand
	rootCmd.AddCommand(runCmd)
}
