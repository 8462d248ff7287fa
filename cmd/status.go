// crater status [path]
package cmd

import (
	"github.com/crater-build/crater/internal/builder"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [workspace path]",
	Short: "Report each unit's staleness without building",
	Long:  `Report, per unit, whether its artifact is up-to-date, stale or missing, and which files would trigger a rebuild. Never invokes the compiler.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doPass((*builder.Builder).Status),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
