package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"apimages/pkg/config"
	"apimages/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage apimages configuration files.

Configuration is assembled from, highest priority first:
  - Command line flags
  - Environment variables (APIMAGES_*, .env files included)
  - settings.json ({"token": "...", "base_url": "..."})
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to .apimages.yaml unless --config names another path.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with the token masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

const exampleConfig = `# apimages configuration file
#
# Every value can also be set with an APIMAGES_ environment variable,
# for example APIMAGES_TOKEN, APIMAGES_BASE_URL or APIMAGES_ITEM_LIMIT.

api:
  # Base URL of the REST API (required)
  base_url: "https://api.example.com/api/v1"

  # API token, sent as "Authorization: Token <token>" (required)
  # Prefer APIMAGES_TOKEN or 'apimages auth login' over storing it here.
  token: ""

  # Per-request timeout
  timeout: 30s

  # Legacy settings file read for token and base_url
  settings_file: "settings.json"

output:
  # One subdirectory per site is created here
  base_directory: ".output"

  # JSON list of completed site names
  checkpoint_file: "site_status.json"

fetch:
  # Maximum sites, and access points per site, to process (0 = no limit)
  item_limit: 0

  # Parallel image downloads per access point (1-10)
  concurrent_downloads: 1

logging:
  # debug, info, warn, error or disabled
  level: "info"

  # Optional JSON log file
  file: ""

notifications:
  # Desktop notification when a run ends
  enabled: false
`

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".apimages.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Set api.base_url, and a token here or with 'apimages auth login'")
	fmt.Fprintln(out, "2. Run 'apimages config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start downloading with 'apimages fetch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	var warnings []string
	if info, err := os.Stat(cfg.Output.BaseDirectory); err == nil && !info.IsDir() {
		return fmt.Errorf("output.base_directory %s is not a directory", cfg.Output.BaseDirectory)
	}
	if cfg.Fetch.ItemLimit > 0 {
		warnings = append(warnings, fmt.Sprintf("only the first %d sites and access points per site will be processed", cfg.Fetch.ItemLimit))
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Base URL", cfg.API.BaseURL)
	ui.PrintInfo("Token", config.MaskSecret(cfg.API.Token))
	ui.PrintInfo("Output directory", cfg.Output.BaseDirectory)
	ui.PrintInfo("Checkpoint file", cfg.Output.CheckpointFile)
	ui.PrintInfo("Concurrent downloads", fmt.Sprint(cfg.Fetch.ConcurrentDownloads))
	ui.PrintInfo("Log level", cfg.Logging.Level)
	return nil
}
