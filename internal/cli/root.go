// Package cli provides the command-line interface for shopchat.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pixelvault/shopchat/internal/client"
	"github.com/pixelvault/shopchat/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and API client
	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "shopchat",
	Short: "Storefront shopping assistant",
	Long: `Shopchat is a terminal client for the storefront's conversational
shopping assistant. It streams replies token by token, keeps track of your
chat threads, and walks you through address and payment selection when
you ask the assistant to buy something.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip client setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		apiClient = client.New(cfg.APIURL)
		apiClient.SetToken(cfg.APIToken)
		apiClient.SetTransport(cfg.Transport)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(threadsCmd)
}
