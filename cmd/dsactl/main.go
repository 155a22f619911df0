// Command dsactl inspects DSA devices and exercises work queues
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ehrlich-b/go-dsa"
	"github.com/ehrlich-b/go-dsa/internal/logging"
)

var (
	envFile  string
	logLevel string
	logJSON  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dsactl",
	Short: "Inspect Intel DSA devices and run work queue operations.",
	Long: `dsactl lists DSA devices and work queues, reports CPU support for ` +
		`the submission instructions, and runs self-tests and benchmarks ` +
		`against a hardware, simulated or software engine.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(cmd); err != nil {
			return err
		}

		cfg := logging.DefaultConfig()
		cfg.Level = logging.ParseLevel(logLevel)
		cfg.Sync = true
		if logJSON {
			cfg.Format = "json"
		}
		logging.SetDefault(logging.NewLogger(cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"file of GO_DSA_* settings to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
}

// loadEnv loads the env file. The default file may be absent; one named on
// the command line must exist.
func loadEnv(cmd *cobra.Command) error {
	if _, err := os.Stat(envFile); err != nil {
		if cmd.Flags().Changed("env-file") {
			return fmt.Errorf("env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// engineFlags are shared by the commands that open an engine
type engineFlags struct {
	wq       string
	mode     string
	simulate bool
	fallback bool
	depth    int
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.wq, "wq", "", "work queue name or device path (default: first enabled)")
	cmd.Flags().StringVar(&f.mode, "mode", "auto", "submission mode: auto, shared or dedicated")
	cmd.Flags().BoolVar(&f.simulate, "simulate", false, "drive a simulated device instead of hardware")
	cmd.Flags().BoolVar(&f.fallback, "fallback", false, "use the software engine if no hardware queue is usable")
	cmd.Flags().IntVar(&f.depth, "depth", dsa.DefaultSimulatedQueueSize, "simulated queue depth")
}

func (f *engineFlags) open() (*dsa.Engine, error) {
	params, err := dsa.ParamsFromEnv()
	if err != nil {
		return nil, err
	}
	if f.wq != "" {
		params.WorkQueue = f.wq
	}
	if f.fallback {
		params.AllowSoftwareFallback = true
	}

	switch f.mode {
	case "auto":
	case "shared":
		params.Mode = dsa.ModeShared
	case "dedicated":
		params.Mode = dsa.ModeDedicated
	default:
		return nil, fmt.Errorf("unknown mode %q", f.mode)
	}

	if f.simulate {
		sp := dsa.DefaultSimParams()
		sp.Mode = params.Mode
		sp.Depth = f.depth
		sp.MaxRetries = params.MaxRetries
		sp.SpinIterations = params.SpinIterations
		return dsa.OpenSimulated(sp, nil)
	}
	return dsa.Open(params, nil)
}

// parseSize parses a size string like "4K", "1M" or "2G"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
	}
	if multiplier != 1 {
		s = s[:len(s)-1]
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if num < 0 {
		return 0, fmt.Errorf("negative size %d", num)
	}
	return num * multiplier, nil
}

// formatSize formats a byte count as a human-readable string
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
