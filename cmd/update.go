package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/nnarain/backlight/internal/logging"
	"github.com/nnarain/backlight/internal/version"
)

const defaultRepository = "nnarain/backlight"

// CreateUpdateCmd creates the self-update command.
func CreateUpdateCmd() *cobra.Command {
	var repository string
	var prerelease bool
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the daemon to the latest GitHub release",
		Long: `Checks GitHub for a newer release and replaces the running binary in place. ` +
			`Use --check to only report whether an update is available.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("updater")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
			if err != nil {
				logger.Error("Failed to create GitHub source", "error", err)
				os.Exit(1)
			}

			updater, err := selfupdate.NewUpdater(selfupdate.Config{
				Source:     source,
				Prerelease: prerelease,
			})
			if err != nil {
				logger.Error("Failed to create updater", "error", err)
				os.Exit(1)
			}

			repo := selfupdate.ParseSlug(repository)
			release, found, err := updater.DetectLatest(ctx, repo)
			if err != nil {
				logger.Error("Failed to check for updates", "repository", repository, "error", err)
				os.Exit(1)
			}
			if !found {
				fmt.Printf("No release found for %s on %s/%s\n", repository, runtime.GOOS, runtime.GOARCH)
				return
			}

			current := version.Version
			if current != "dev" && !release.GreaterThan(current) {
				fmt.Printf("Already up to date (%s)\n", current)
				return
			}

			if checkOnly {
				fmt.Printf("Update available: %s -> %s\n", current, release.Version())
				return
			}

			exe, err := selfupdate.ExecutablePath()
			if err != nil {
				logger.Error("Failed to locate executable", "error", err)
				os.Exit(1)
			}

			logger.Info("Installing update", "from", current, "to", release.Version())
			if err := updater.UpdateTo(ctx, release, exe); err != nil {
				logger.Error("Update failed", "error", err)
				os.Exit(1)
			}

			fmt.Printf("Updated to %s. Restart the service to run the new version.\n", release.Version())
		},
	}

	cmd.Flags().StringVar(&repository, "repository", defaultRepository, "GitHub repository slug (owner/name)")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Consider prerelease versions")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Check for an update without installing it")
	return cmd
}
