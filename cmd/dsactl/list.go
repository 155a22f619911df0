package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/go-dsa"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List DSA devices and their work queues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := dsa.NewDiscoverer().Devices()
		if err != nil {
			return err
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(devices)
		}

		if len(devices) == 0 {
			fmt.Println("No DSA devices found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tQUEUE\tSTATE\tMODE\tTYPE\tSIZE\tTHRESHOLD\tMAX XFER\tNODE")
		for _, dev := range devices {
			if len(dev.WorkQueues) == 0 {
				fmt.Fprintf(w, "%s\t-\t\t\t\t\t\t\t\n", dev.Name)
				continue
			}
			for _, wq := range dev.WorkQueues {
				node := wq.DevicePath
				if node == "" {
					node = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					dev.Name, wq.Name, wq.State, wq.Mode, wq.Type, wq.Size, wq.Threshold,
					formatSize(int64(wq.MaxTransferSize)), node)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print devices as JSON")
}
