package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ehrlich-b/go-dsa"
)

var (
	benchFlags      engineFlags
	benchOp         string
	benchSize       string
	benchWorkers    int
	benchIterations int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure operation throughput and latency.",
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := parseSize(benchSize)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", benchSize, err)
		}
		if size <= 0 || uint64(size) > dsa.MaxTransferSize {
			return fmt.Errorf("size %d out of range", size)
		}
		if benchWorkers <= 0 || benchIterations <= 0 {
			return fmt.Errorf("workers and iterations must be positive")
		}

		engine, err := benchFlags.open()
		if err != nil {
			return err
		}
		defer engine.Close()

		op, err := benchOperation(engine, benchOp)
		if err != nil {
			return err
		}

		fmt.Printf("Benchmarking %s on %s engine: %d workers x %d iterations of %s\n",
			benchOp, engine.Mode(), benchWorkers, benchIterations, formatSize(size))

		start := time.Now()
		var g errgroup.Group
		for w := 0; w < benchWorkers; w++ {
			a := make([]byte, size)
			b := make([]byte, size)
			for i := range a {
				a[i] = byte(i)
			}
			g.Go(func() error {
				for i := 0; i < benchIterations; i++ {
					if err := op(a, b); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		elapsed := time.Since(start)

		total := int64(benchWorkers) * int64(benchIterations)
		snap := engine.MetricsSnapshot()
		fmt.Printf("  elapsed:    %v\n", elapsed.Round(time.Microsecond))
		fmt.Printf("  ops/sec:    %.0f\n", float64(total)/elapsed.Seconds())
		fmt.Printf("  throughput: %s/s\n", formatSize(int64(float64(total*size)/elapsed.Seconds())))
		fmt.Printf("  latency:    avg %v, p50 %v, p99 %v, p99.9 %v\n",
			time.Duration(snap.AvgLatencyNs), time.Duration(snap.LatencyP50Ns),
			time.Duration(snap.LatencyP99Ns), time.Duration(snap.LatencyP999Ns))
		if snap.Submissions > 0 {
			fmt.Printf("  submits:    %d, retries %d (max %d), rejected %d\n",
				snap.Submissions, snap.Retries, snap.MaxRetries, snap.Rejected)
		}
		return nil
	},
}

// benchOperation returns a function running op over a pair of buffers
func benchOperation(engine *dsa.Engine, op string) (func(a, b []byte) error, error) {
	switch op {
	case "crc":
		return func(a, _ []byte) error {
			_, err := engine.CRC32(a)
			return err
		}, nil
	case "copy":
		return func(a, b []byte) error { return engine.Copy(b, a) }, nil
	case "fill":
		return func(_, b []byte) error { return engine.Fill(b, 0xa5a5a5a5a5a5a5a5) }, nil
	case "compare":
		return func(a, b []byte) error {
			_, err := engine.Compare(a, b)
			return err
		}, nil
	case "noop":
		return func(_, _ []byte) error { return engine.Noop() }, nil
	}
	return nil, fmt.Errorf("unknown op %q (want crc, copy, fill, compare or noop)", op)
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchFlags.register(benchCmd)
	benchCmd.Flags().StringVar(&benchOp, "op", "crc", "operation: crc, copy, fill, compare or noop")
	benchCmd.Flags().StringVar(&benchSize, "size", "64K", "buffer size (e.g. 4K, 1M)")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 1, "concurrent workers")
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 1000, "operations per worker")
}
