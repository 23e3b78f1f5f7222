package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/kernel"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mandelsimd version %s (%s/%s, %s, lanes quad=%s oct=%s)\n",
			version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
			kernel.ActiveQuadBackend, kernel.ActiveOctBackend)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
