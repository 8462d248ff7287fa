// crater setup-toolchain [path]
package cmd

import (
	"github.com/crater-build/crater/internal/builder"
	"github.com/spf13/cobra"
)

var toolchainCmd = &cobra.Command{
	Use:   "setup-toolchain [workspace path]",
	Short: "Install the pinned toolchain and compilation targets",
	Long:  `Install the pinned toolchain channel and register every compilation target declared in the [toolchain] section.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doPass((*builder.Builder).SetupToolchain),
}

func init() {
	rootCmd.AddCommand(toolchainCmd)
}
