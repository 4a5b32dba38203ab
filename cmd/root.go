// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/pcmbridge/cmd/devices"
	"github.com/tphakala/pcmbridge/cmd/play"
	"github.com/tphakala/pcmbridge/internal/conf"
	"github.com/tphakala/pcmbridge/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pcmbridge",
		Short: "PCM bridge CLI",
		Long:  "Bridge synchronous PCM plugin callbacks onto the native asynchronous audio engine.",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	subcommands := []*cobra.Command{
		play.Command(settings),
		devices.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Sync settings with viper so command-line arguments take precedence.
		if err := viper.Unmarshal(settings); err != nil {
			return fmt.Errorf("error syncing settings: %w", err)
		}
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Bridge.Backend, "backend", viper.GetString("bridge.backend"), "Native engine backend: legacy, lowlevel or auto")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
