package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-detect/pkg/batch"
	"github.com/zpam/spam-detect/pkg/predictor"
	"github.com/zpam/spam-detect/pkg/profiler"
)

var (
	benchmarkInput      string
	benchmarkRuns       int
	benchmarkConcurrent int
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Performance benchmark and analysis",
	Long: `Classify every row of a CSV file several times and report latency per
pipeline stage. The prediction cache is bypassed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchmarkRuns < 1 {
			return fmt.Errorf("runs must be >= 1")
		}
		if benchmarkConcurrent < 1 {
			return fmt.Errorf("concurrent must be >= 1")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		deps, err := newDependencies(cfg, false)
		if err != nil {
			return err
		}
		defer deps.Close()

		pred, err := deps.requirePredictor()
		if err != nil {
			return err
		}

		f, err := os.Open(benchmarkInput)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		table, err := batch.ReadCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", benchmarkInput, err)
		}

		cols, err := batch.DetectColumns(table.Header)
		if err != nil {
			return err
		}

		samples := make([]benchmarkSample, len(table.Rows))
		for i, record := range table.Rows {
			samples[i].text = batch.AssembleText(record, cols)
			if cols.HasLabel() {
				samples[i].truth = batch.GroundTruth(record[cols.Label])
			}
		}
		if len(samples) == 0 {
			return fmt.Errorf("no rows found in %s", benchmarkInput)
		}

		fmt.Printf("🚀 ZPAM Performance Benchmark\n")
		fmt.Printf("📁 Input: %s\n", benchmarkInput)
		fmt.Printf("📧 Rows: %d\n", len(samples))
		fmt.Printf("🔄 Benchmark runs: %d\n", benchmarkRuns)
		fmt.Printf("⚡ Concurrent workers: %d\n\n", benchmarkConcurrent)

		result := runBenchmark(pred, deps.profiler, samples, benchmarkRuns, benchmarkConcurrent)
		displayBenchmarkResults(result)
		deps.profiler.WriteReport(os.Stdout)

		return nil
	},
}

type benchmarkSample struct {
	text  string
	truth string // "" when unknown
}

// BenchmarkResult contains performance and classification totals
type BenchmarkResult struct {
	TotalEmails     int
	TotalTime       time.Duration
	EmailsPerSecond float64
	Latency         profiler.Stats

	SpamDetected int
	HamDetected  int
	Excluded     int
	Errors       int

	Labeled int
	Correct int
}

func runBenchmark(pred *predictor.Predictor, prof *profiler.Profiler, samples []benchmarkSample, runs, concurrent int) *BenchmarkResult {
	result := &BenchmarkResult{TotalEmails: len(samples) * runs}

	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrent)

	prof.Reset()
	start := time.Now()

	for run := 0; run < runs; run++ {
		for _, sample := range samples {
			wg.Add(1)

			go func(s benchmarkSample) {
				defer wg.Done()

				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				outcome, err := pred.Predict(context.Background(), s.text)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					result.Errors++
				case outcome == nil:
					result.Excluded++
				default:
					if outcome.IsSpam() {
						result.SpamDetected++
					} else {
						result.HamDetected++
					}
					if s.truth != "" {
						result.Labeled++
						if s.truth == outcome.Prediction {
							result.Correct++
						}
					}
				}
			}(sample)
		}
	}

	wg.Wait()
	result.TotalTime = time.Since(start)
	result.Latency = prof.Stats(profiler.StagePredict)
	if result.TotalTime > 0 {
		result.EmailsPerSecond = float64(result.TotalEmails) / result.TotalTime.Seconds()
	}

	return result
}

// displayBenchmarkResults shows formatted benchmark results
func displayBenchmarkResults(result *BenchmarkResult) {
	fmt.Printf("📊 Benchmark Results\n")
	fmt.Printf("═══════════════════════════════════════\n\n")

	fmt.Printf("⚡ Performance Metrics:\n")
	fmt.Printf("  Total emails processed: %d\n", result.TotalEmails)
	fmt.Printf("  Total time: %v\n", result.TotalTime)
	fmt.Printf("  Average time per email: %s\n", profiler.FormatDuration(result.Latency.Average))
	fmt.Printf("  Emails per second: %.0f\n", result.EmailsPerSecond)
	fmt.Printf("\n")

	fmt.Printf("📈 Time Distribution:\n")
	fmt.Printf("  Min time: %s\n", profiler.FormatDuration(result.Latency.Min))
	fmt.Printf("  Max time: %s\n", profiler.FormatDuration(result.Latency.Max))
	fmt.Printf("  Median time: %s\n", profiler.FormatDuration(result.Latency.Median))
	fmt.Printf("  95th percentile: %s\n", profiler.FormatDuration(result.Latency.P95))
	fmt.Printf("  99th percentile: %s\n", profiler.FormatDuration(result.Latency.P99))
	fmt.Printf("\n")

	fmt.Printf("🎯 Classification Results:\n")
	fmt.Printf("  Spam detected: %d\n", result.SpamDetected)
	fmt.Printf("  Ham detected: %d\n", result.HamDetected)
	fmt.Printf("  Excluded (no usable text): %d\n", result.Excluded)
	fmt.Printf("  Errors: %d\n", result.Errors)
	if result.Labeled > 0 {
		fmt.Printf("  Accuracy: %.2f%% (%d/%d labeled)\n",
			float64(result.Correct)/float64(result.Labeled)*100, result.Correct, result.Labeled)
	}
	fmt.Printf("\n")
}

func init() {
	benchmarkCmd.Flags().StringVarP(&benchmarkInput, "input", "i", "", "Input CSV file")
	benchmarkCmd.Flags().IntVarP(&benchmarkRuns, "runs", "r", 3, "Number of benchmark runs")
	benchmarkCmd.Flags().IntVarP(&benchmarkConcurrent, "concurrent", "j", 1, "Number of concurrent workers")

	benchmarkCmd.MarkFlagRequired("input")
}
