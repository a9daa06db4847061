package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-detect/pkg/batch"
	"github.com/zpam/spam-detect/pkg/logging"
	"github.com/zpam/spam-detect/pkg/results"
)

var (
	batchInput   string
	batchOutput  string
	batchPreview int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Classify every email in a CSV file",
	Long: `Classify every row of a CSV file and write a results CSV.

The message column is detected from the header (message, text, body, content,
email). An optional subject column is prepended to the message, and a label
column (0 = ham, 1 = spam) enables accuracy reporting.

Without --output the results file is written to storage.results_dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		deps, err := newDependencies(cfg, true)
		if err != nil {
			return err
		}
		defer deps.Close()

		pred, err := deps.requirePredictor()
		if err != nil {
			return err
		}

		f, err := os.Open(batchInput)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()

		table, err := batch.ReadCSV(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", batchInput, err)
		}

		var store batch.ResultStore
		if batchOutput != "" {
			store = pathStore(batchOutput)
		} else {
			fileStore, err := results.NewFileStore(cfg.Storage.ResultsDir)
			if err != nil {
				return err
			}
			store = fileStore
		}

		preview := cfg.Batch.PreviewRows
		if cmd.Flags().Changed("preview") {
			preview = batchPreview
		}

		processor := batch.NewProcessor(pred,
			batch.WithStore(store),
			batch.WithMetrics(deps.metrics),
			batch.WithLogger(logging.Component(deps.log, "batch")),
			batch.WithPreviewRows(preview),
			batch.WithProgressEvery(cfg.Batch.ProgressEvery),
		)

		summary, err := processor.Process(context.Background(), table)
		if err != nil {
			return err
		}

		output := summary.ResultName
		if batchOutput == "" {
			output = filepath.Join(cfg.Storage.ResultsDir, summary.ResultName)
		}

		fmt.Printf("ZPAM Batch Complete!\n")
		fmt.Printf("Input: %s\n", batchInput)
		fmt.Printf("Columns: message=%q subject=%q label=%q\n",
			columnLabel(summary.Columns, summary.Columns.Text),
			columnLabel(summary.Columns, summary.Columns.Subject),
			columnLabel(summary.Columns, summary.Columns.Label))
		fmt.Printf("%s\n", summary.Message())
		fmt.Printf("Spam percentage: %.2f%%\n", summary.SpamPercentage)
		if summary.Excluded > 0 {
			fmt.Printf("Excluded rows (no usable text): %d\n", summary.Excluded)
		}
		fmt.Printf("Results: %s\n", output)
		fmt.Printf("Total time: %v\n", summary.Duration)

		if len(summary.Preview) > 0 {
			fmt.Printf("\nPreview:\n")
			for _, row := range summary.Preview {
				fmt.Printf("  #%-5d %-4s %.4f  %s\n", row.Row, row.Prediction, row.Confidence, row.TextPreview)
			}
		}

		return nil
	},
}

// pathStore writes the results file to one fixed path
type pathStore string

func (p pathStore) Save(ctx context.Context, write func(w io.Writer) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Create(string(p))
	if err != nil {
		return "", fmt.Errorf("failed to create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return string(p), nil
}

func columnLabel(cols batch.Columns, idx int) string {
	if idx < 0 {
		return ""
	}
	return cols.Names[idx]
}

func init() {
	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "Input CSV file")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Output CSV path")
	batchCmd.Flags().IntVarP(&batchPreview, "preview", "p", 10, "Rows to print in the preview")

	batchCmd.MarkFlagRequired("input")
}
