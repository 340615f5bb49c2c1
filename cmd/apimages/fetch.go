package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"apimages/pkg/api"
	"apimages/pkg/auth"
	"apimages/pkg/checkpoint"
	"apimages/pkg/config"
	apperrors "apimages/pkg/errors"
	"apimages/pkg/fetcher"
	"apimages/pkg/logger"
	"apimages/pkg/storage"
	"apimages/pkg/ui"
)

var (
	// Fetch command flags
	outputDir      string
	checkpointFile string
	settingsFile   string
	itemLimit      int
	concurrent     int
	apiToken       string
	baseURL        string
	accountName    string
	forceRestart   bool
	notify         bool
	dryRun         bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download access point images for every site not yet completed",
	Long: `Download the images of every access point of every site the token can see.

Credentials are taken from, in order:
  - the --token and --base-url flags
  - APIMAGES_TOKEN and APIMAGES_BASE_URL (a .env file is read too)
  - settings.json ({"token": "...", "base_url": "..."})
  - the config file
  - a stored account (see 'apimages auth login')

A site is written to the checkpoint only after all of its images were
downloaded or found on disk. The first failed request stops the run.`,
	Example: `  # Fetch everything not fetched yet
  apimages fetch

  # Only look at the first four sites and four access points per site
  apimages fetch --limit 4

  # Use a stored account and four parallel downloads per access point
  apimages fetch --account office --concurrent 4

  # Show which sites would be processed
  apimages fetch --dry-run

  # Start over, keeping a backup of the old checkpoint
  apimages fetch --force-restart`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for images (default .output)")
	fetchCmd.Flags().StringVar(&checkpointFile, "checkpoint", "", "checkpoint file (default site_status.json)")
	fetchCmd.Flags().StringVar(&settingsFile, "settings", "", "legacy settings file (default settings.json)")
	fetchCmd.Flags().IntVarP(&itemLimit, "limit", "l", 0, "maximum sites, and access points per site, to process (0 = no limit)")
	fetchCmd.Flags().IntVar(&concurrent, "concurrent", 1, "parallel image downloads per access point")
	fetchCmd.Flags().StringVar(&apiToken, "token", "", "API token")
	fetchCmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL")
	fetchCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a stored account")
	fetchCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "back up the checkpoint and start from an empty one")
	fetchCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
	fetchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list eligible sites without downloading anything")
}

// fetchFlags collects the flags the user actually set
func fetchFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	set := func(name string, value interface{}) {
		if cmd.Flags().Changed(name) {
			flags[name] = value
		}
	}

	set("output", outputDir)
	set("checkpoint", checkpointFile)
	set("settings", settingsFile)
	set("limit", itemLimit)
	set("concurrent", concurrent)
	set("token", apiToken)
	set("base-url", baseURL)
	set("notify", notify)
	return flags
}

// accountSource is the part of auth.Manager the fetch command needs
type accountSource interface {
	Retrieve(name string) (*auth.Account, error)
	RetrieveDefault() (*auth.Account, error)
}

// applyAccount fills credentials from a stored account. A named account
// always wins over configured credentials; otherwise the default account is
// only consulted when no token is configured.
func applyAccount(cfg *config.Config, name string, source func() (accountSource, error)) (*auth.Account, error) {
	if name == "" && cfg.API.Token != "" {
		return nil, nil
	}

	accounts, err := source()
	if err != nil {
		if name != "" {
			return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		return nil, nil
	}

	var account *auth.Account
	if name != "" {
		account, err = accounts.Retrieve(name)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", name, err)
		}
		cfg.API.Token = account.Token
		if account.BaseURL != "" {
			cfg.API.BaseURL = account.BaseURL
		}
		return account, nil
	}

	account, err = accounts.RetrieveDefault()
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cfg.API.Token = account.Token
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = account.BaseURL
	}
	return account, nil
}

func defaultAccountSource() (accountSource, error) {
	return auth.NewManager()
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, fetchFlags(cmd))
	if err != nil {
		return err
	}

	account, err := applyAccount(cfg, accountName, defaultAccountSource)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		if apperrors.IsKind(err, apperrors.KindConfigurationMissing) {
			fmt.Fprintln(ui.ErrOutput, "Provide credentials with --token/--base-url, APIMAGES_TOKEN/APIMAGES_BASE_URL,")
			fmt.Fprintln(ui.ErrOutput, "a settings.json file, or store an account with 'apimages auth login'.")
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("apimages starting")
	if account != nil {
		log.WithField("account", account.Name).Info("Using stored credentials")
		ui.PrintInfo("Using account", account.Name)
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return err
	}

	opts := fetcher.OptionsFromConfig(cfg)
	opts.ForceRestart = forceRestart
	opts.DryRun = dryRun

	f := fetcher.New(
		api.NewClient(&cfg.API, log),
		store,
		checkpoint.NewStore(cfg.Output.CheckpointFile, log),
		ui.NewProgress(ui.Output, ui.IsQuietMode()),
		log,
		opts,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := ui.NewNotifier(cfg.Notifications.Enabled)
	summary, err := f.Run(ctx)
	if err != nil {
		if nerr := notifier.SendError("apimages failed", err.Error()); nerr != nil {
			log.WithError(nerr).Warn("Failed to send notification")
		}
		return err
	}

	printSummary(summary)
	if nerr := notifier.SendSuccess("apimages finished", fmt.Sprintf("%s images downloaded from %d site(s)",
		ui.FormatCount(summary.ImagesDownloaded), summary.SitesCompleted)); nerr != nil {
		log.WithError(nerr).Warn("Failed to send notification")
	}
	return nil
}

func printSummary(s *fetcher.Summary) {
	if s.DryRun {
		ui.PrintInfo("Sites pending", ui.FormatCount(s.SitesTotal-s.SitesSkipped))
		ui.PrintInfo("Sites completed", ui.FormatCount(s.SitesSkipped))
		return
	}

	ui.PrintSuccess("Fetch completed")
	ui.PrintInfo("Sites processed", ui.FormatCount(s.SitesCompleted))
	ui.PrintInfo("Sites skipped", ui.FormatCount(s.SitesSkipped))
	ui.PrintInfo("Access points", ui.FormatCount(s.Devices))
	ui.PrintInfo("Images downloaded", fmt.Sprintf("%s (%s)", ui.FormatCount(s.ImagesDownloaded), ui.FormatBytes(s.Bytes)))
	ui.PrintInfo("Images already present", ui.FormatCount(s.ImagesPresent))
	ui.PrintInfo("Duration", ui.FormatDuration(s.Duration))
}
