package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/cpu"
	"github.com/spf13/cobra"

	"github.com/ehrlich-b/go-dsa"
	"github.com/ehrlich-b/go-dsa/internal/logging"
	"github.com/ehrlich-b/go-dsa/internal/portal"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Report host support for DSA offload.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Platform:          %s/%s\n", runtime.GOOS, runtime.GOARCH)

		if stats, err := cpu.Info(); err != nil || len(stats) == 0 {
			logging.Warn("cpu info unavailable", "error", err)
		} else {
			fmt.Printf("CPU:               %s (%d logical)\n", stats[0].ModelName, len(stats))
			flags := make(map[string]bool, len(stats[0].Flags))
			for _, f := range stats[0].Flags {
				flags[strings.ToLower(f)] = true
			}
			fmt.Printf("cpuinfo movdir64b: %s\n", yesNo(flags["movdir64b"]))
			fmt.Printf("cpuinfo enqcmd:    %s\n", yesNo(flags["enqcmd"]))
		}

		caps := portal.Detect()
		fmt.Printf("CPUID MOVDIR64B:   %s\n", yesNo(caps.MOVDIR64B))
		fmt.Printf("CPUID ENQCMD:      %s\n", yesNo(caps.ENQCMD))

		disc := dsa.NewDiscoverer()
		fmt.Printf("idxd driver:       %s\n", yesNo(disc.Available()))
		fmt.Printf("work queue nodes:  %s\n", yesNo(disc.Configured()))

		if wq, err := disc.FirstEnabled(); err == nil {
			fmt.Printf("first queue:       %s\n", wq)
		} else {
			fmt.Printf("first queue:       none (%v)\n", err)
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
