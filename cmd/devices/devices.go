// Package devices implements the playback device listing subcommand.
package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/pcmbridge/internal/conf"
	"github.com/tphakala/pcmbridge/internal/engine"
)

// Command creates the devices command, enumerating the playback devices the
// configured backend exposes.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := engine.ListPlaybackDevices(engine.ParseBackend(settings.Bridge.Backend))
			if err != nil {
				return err
			}

			for _, info := range infos {
				marker := " "
				if info.IsDefault {
					marker = "*"
				}
				fmt.Printf("%s %2d: %s\n", marker, info.Index, info.Name)
			}
			return nil
		},
	}
}
