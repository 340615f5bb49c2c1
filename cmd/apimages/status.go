package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"apimages/pkg/checkpoint"
	"apimages/pkg/config"
	"apimages/pkg/ui"
)

var (
	statusJSON       bool
	statusCheckpoint string
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sites recorded as completed",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Back up and delete the checkpoint so the next fetch starts over",
	Long: `Back up the checkpoint to <checkpoint>.backup and delete it.

Images already on disk are kept and will not be downloaded again.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")
	for _, c := range []*cobra.Command{statusCmd, resetCmd} {
		c.Flags().StringVar(&statusCheckpoint, "checkpoint", "", "checkpoint file (default site_status.json)")
	}
}

// checkpointStore opens the checkpoint named by flags and configuration
func checkpointStore(cmd *cobra.Command) (*checkpoint.Store, error) {
	flags := globalFlags(cmd)
	if cmd.Flags().Changed("checkpoint") {
		flags["checkpoint"] = statusCheckpoint
	}
	cfg, err := config.LoadUnvalidated(configFile, flags)
	if err != nil {
		return nil, err
	}
	return checkpoint.NewStore(cfg.Output.CheckpointFile, nil), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := checkpointStore(cmd)
	if err != nil {
		return err
	}

	info, err := store.Info()
	if err != nil {
		return err
	}
	if info == nil {
		info = &checkpoint.Info{Path: store.Path(), Sites: []string{}}
	}

	if statusJSON {
		return writeStatusJSON(cmd.OutOrStdout(), info)
	}

	ui.PrintInfo("Checkpoint", info.Path)
	if info.UpdatedAt.IsZero() {
		ui.PrintWarning("No checkpoint yet; every site is pending")
		return nil
	}
	ui.PrintInfo("Updated", info.UpdatedAt.Format("2006-01-02 15:04:05"))
	ui.PrintInfo("Completed sites", ui.FormatCount(len(info.Sites)))
	for _, site := range info.Sites {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", site)
	}
	return nil
}

func writeStatusJSON(w io.Writer, info *checkpoint.Info) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func runReset(cmd *cobra.Command, args []string) error {
	store, err := checkpointStore(cmd)
	if err != nil {
		return err
	}

	if !store.Exists() {
		ui.PrintWarning("No checkpoint to reset", store.Path())
		return nil
	}

	backup, err := store.Backup()
	if err != nil {
		return err
	}
	if err := store.Delete(); err != nil {
		return err
	}

	ui.PrintSuccess("Checkpoint reset")
	ui.PrintInfo("Backup", backup)
	return nil
}
