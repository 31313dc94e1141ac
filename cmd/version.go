package cmd

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and platform information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cleanslate %s (%s) built %s\n", appVersion, appCommit, appDate)
		fmt.Printf("platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		if info, err := host.Info(); err == nil {
			fmt.Printf("host: %s %s (%s)\n", info.Platform, info.PlatformVersion, info.KernelVersion)
		}
	},
}
