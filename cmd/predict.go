package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/zpam/spam-detect/pkg/apperr"
	"github.com/zpam/spam-detect/pkg/email"
)

var (
	predictFile string
	predictJSON bool
)

var predictCmd = &cobra.Command{
	Use:   "predict [text]",
	Short: "Classify a single email",
	Long: `Classify one email given as text or as an RFC 5322 message file.

Examples:
  zpam predict "Congratulations, you won a FREE prize"
  zpam predict --file message.eml
  echo "see you at the meeting" | zpam predict -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, source, err := predictInput(args)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return apperr.EmptyInput("Email")
		}

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

		start := time.Now()
		result, err := pred.Predict(context.Background(), text)
		if err != nil {
			return err
		}
		if result == nil {
			return apperr.NoValidContent()
		}
		duration := time.Since(start)

		if predictJSON {
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("ZPAM Prediction:\n")
		fmt.Printf("Source: %s\n", source)
		fmt.Printf("Prediction: %s\n", strings.ToUpper(result.Prediction))
		fmt.Printf("Confidence: %.4f\n", result.Confidence)
		fmt.Printf("Probabilities: spam=%.4f ham=%.4f\n", result.Probabilities.Spam, result.Probabilities.Ham)
		fmt.Printf("Processing time: %.2fms\n", float64(duration.Nanoseconds())/1e6)

		return nil
	},
}

// predictInput resolves the text to classify and a short description of where it came from
func predictInput(args []string) (string, string, error) {
	if predictFile != "" {
		msg, err := email.NewParser().ParseFromFile(predictFile)
		if err != nil {
			return "", "", err
		}
		return msg.Text(), predictFile, nil
	}

	if len(args) == 0 {
		return "", "", fmt.Errorf("provide the email text as an argument, '-' for stdin, or --file")
	}

	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	return args[0], "argument", nil
}

func init() {
	predictCmd.Flags().StringVarP(&predictFile, "file", "f", "", "RFC 5322 message file (.eml)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "Print the result as JSON")
}
