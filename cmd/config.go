package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-detect/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Generate, validate and inspect ZPAM configuration files`,
}

var configGenCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Long:  `Generate a configuration file populated with every default value`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) > 0 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil {
			overwrite, _ := cmd.Flags().GetBool("force")
			if !overwrite {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}
		}

		if err := config.DefaultConfig().SaveConfig(path); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}

		fmt.Printf("✅ Configuration file generated: %s\n", path)
		fmt.Printf("🚀 Use 'zpam serve --config %s' to use the configuration\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate a configuration file for syntax and logical errors`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		cfg, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("❌ Configuration validation failed: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("❌ Configuration validation failed: %v", err)
		}

		fmt.Printf("✅ Configuration is valid: %s\n", path)

		if warnings := validateConfigLogic(cfg); len(warnings) > 0 {
			fmt.Printf("\n⚠️  Warnings:\n")
			for _, warning := range warnings {
				fmt.Printf("  - %s\n", warning)
			}
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including environment overrides`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if len(args) > 0 {
			loaded, err := config.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("failed to load config: %v", err)
			}
			cfg = loaded
			fmt.Printf("Configuration: %s\n\n", args[0])
		} else {
			fmt.Printf("Default Configuration:\n\n")
		}
		cfg.ApplyEnv()

		fmt.Printf("🧠 Model:\n")
		fmt.Printf("  Directory: %s\n", cfg.Model.Dir)
		fmt.Printf("  Vectorizer: %s\n", cfg.Model.Vectorizer)
		fmt.Printf("  Scaler: %s\n", cfg.Model.Scaler)
		fmt.Printf("  Classifier: %s\n", cfg.Model.Classifier)

		fmt.Printf("\n🌐 Server:\n")
		fmt.Printf("  Listen: %s\n", cfg.Server.Listen)
		fmt.Printf("  Max upload: %d MB\n", cfg.Server.MaxUploadMB)
		fmt.Printf("  Allowed extensions: %v\n", cfg.Server.AllowedExtensions)
		fmt.Printf("  Allowed origins: %s\n", cfg.Server.AllowedOrigins)
		fmt.Printf("  Results directory: %s\n", cfg.Storage.ResultsDir)

		fmt.Printf("\n📋 Batch:\n")
		fmt.Printf("  Preview rows: %d\n", cfg.Batch.PreviewRows)
		fmt.Printf("  Progress every: %d rows\n", cfg.Batch.ProgressEvery)

		fmt.Printf("\n⚡ Cache:\n")
		fmt.Printf("  Enabled: %v\n", cfg.Cache.Enabled)
		if cfg.Cache.Enabled {
			fmt.Printf("  Redis: %s (db %d)\n", cfg.Cache.RedisURL, cfg.Cache.DatabaseNum)
			fmt.Printf("  TTL: %s\n", cfg.Cache.TTL)
		}

		fmt.Printf("\n📧 Milter:\n")
		fmt.Printf("  Socket: %s://%s\n", cfg.Milter.Network, cfg.Milter.Address)
		fmt.Printf("  Reject confidence: %.2f\n", cfg.Milter.RejectConfidence)
		fmt.Printf("  Header prefix: %s\n", cfg.Milter.SpamHeaderPrefix)

		fmt.Printf("\n📝 Logging:\n")
		fmt.Printf("  Level: %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)

		return nil
	},
}

// validateConfigLogic reports settings that are valid but probably unintended
func validateConfigLogic(cfg *config.Config) []string {
	var warnings []string

	for _, name := range []string{cfg.Model.Vectorizer, cfg.Model.Scaler, cfg.Model.Classifier} {
		path := filepath.Join(cfg.Model.Dir, name)
		if _, err := os.Stat(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("Model artifact not found: %s", path))
		}
	}

	if cfg.Server.AllowedOrigins == "*" {
		warnings = append(warnings, "CORS allows any origin")
	}

	if cfg.Milter.RejectConfidence > 0 && cfg.Milter.RejectConfidence < 0.5 {
		warnings = append(warnings, "Milter reject confidence below 0.5 rejects every spam prediction")
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		warnings = append(warnings, "Cache is enabled but no redis_url is set")
	}

	if cfg.Batch.PreviewRows > 100 {
		warnings = append(warnings, "Large preview_rows makes /predict-csv responses heavy")
	}

	return warnings
}

func init() {
	configCmd.AddCommand(configGenCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configGenCmd.Flags().Bool("force", false, "Overwrite existing config file")
}
