package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/ehrlich-b/go-dsa"
	"github.com/ehrlich-b/go-dsa/internal/logging"
)

const selfTestSize = 1 << 20

var (
	runFlags engineFlags
	runJSON  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open an engine and run a self-test of every operation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Default().WithOp(xid.New().String(), "selftest")

		engine, err := runFlags.open()
		if err != nil {
			return err
		}
		defer engine.Close()

		info := engine.Info()
		logger.Info("engine open", "execution", info.Execution, "wq", info.WorkQueue, "mode", info.Mode)

		if err := selfTest(engine, logger); err != nil {
			logger.WithError(err).Error("self-test failed")
			return err
		}

		snap := engine.MetricsSnapshot()
		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Info    dsa.Info            `json:"info"`
				Metrics dsa.MetricsSnapshot `json:"metrics"`
			}{info, snap})
		}

		fmt.Printf("Self-test passed on %s engine", info.Execution)
		if info.WorkQueue != "" {
			fmt.Printf(" (%s, %s)", info.WorkQueue, info.Mode)
		}
		fmt.Println()
		fmt.Printf("  operations: %d, bytes: %s, retries: %d, p50: %v, p99: %v\n",
			snap.TotalOps, formatSize(int64(snap.TotalBytes)), snap.Retries,
			time.Duration(snap.LatencyP50Ns), time.Duration(snap.LatencyP99Ns))
		return nil
	},
}

// selfTest checks each operation against a known result
func selfTest(engine *dsa.Engine, logger *logging.Logger) error {
	if err := engine.Noop(); err != nil {
		return fmt.Errorf("noop: %w", err)
	}
	logger.Debug("noop ok")

	crc, err := engine.CRC32([]byte("123456789"))
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	if crc != 0xE3069283 {
		return fmt.Errorf("checksum: got %#08x, want 0xe3069283", crc)
	}
	logger.Debug("checksum ok", "crc", fmt.Sprintf("%#08x", crc))

	src := make([]byte, selfTestSize)
	for i := range src {
		src[i] = byte(i * 7)
	}
	dst := make([]byte, selfTestSize)
	if err := engine.Copy(dst, src); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if !bytes.Equal(dst, src) {
		return fmt.Errorf("copy: destination differs from source")
	}
	logger.Debug("copy ok", "bytes", selfTestSize)

	const pattern = 0x0123456789abcdef
	if err := engine.Fill(dst, pattern); err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	want := []byte{0xef, 0xcd, 0xab, 0x89, 0x67, 0x45, 0x23, 0x01}
	for off := 0; off < len(dst); off += len(want) {
		if !bytes.Equal(dst[off:off+len(want)], want) {
			return fmt.Errorf("fill: wrong pattern at offset %d", off)
		}
	}
	logger.Debug("fill ok", "bytes", selfTestSize)

	if err := engine.Copy(src, dst); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	equal, err := engine.Compare(src, dst)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	if !equal {
		return fmt.Errorf("compare: equal buffers reported different")
	}
	dst[selfTestSize-1] ^= 0xff
	equal, err = engine.Compare(src, dst)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	if equal {
		return fmt.Errorf("compare: different buffers reported equal")
	}
	logger.Debug("compare ok", "bytes", selfTestSize)
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags.register(runCmd)
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print engine info and metrics as JSON")
}
