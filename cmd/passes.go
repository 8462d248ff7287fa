// crater fmt/fix/clean [path] - passthrough passes over every unit
package cmd

import (
	"github.com/crater-build/crater/internal/builder"
	"github.com/crater-build/crater/internal/msg"
	"github.com/spf13/cobra"
)

func doPass(pass func(*builder.Builder) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := pass(newBuilder(args)); err != nil {
			msg.Fatal("%v", err)
		}
	}
}

var fmtCmd = &cobra.Command{
	Use:   "fmt [workspace path]",
	Short: "Run the compiler's formatter in every unit",
	Args:  cobra.MaximumNArgs(1),
	Run:   doPass((*builder.Builder).Fmt),
}

var fixCmd = &cobra.Command{
	Use:   "fix [workspace path]",
	Short: "Run the compiler's auto-fix pass in every unit",
	Args:  cobra.MaximumNArgs(1),
	Run:   doPass((*builder.Builder).Fix),
}

var cleanCmd = &cobra.Command{
	Use:   "clean [workspace path]",
	Short: "Remove every unit's build-output directory",
	Args:  cobra.MaximumNArgs(1),
	Run:   doPass((*builder.Builder).Clean),
}

func init() {
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(cleanCmd)
}
