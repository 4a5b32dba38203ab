// Package play implements the file playback subcommand.
package play

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/pcmbridge/internal/conf"
	"github.com/tphakala/pcmbridge/internal/logging"
	"github.com/tphakala/pcmbridge/internal/observability"
	"github.com/tphakala/pcmbridge/internal/playback"
)

// Command creates the play command, sending a WAV file through the bridge
// to the configured output device.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		telemetry bool
		listen    string
	)

	cmd := &cobra.Command{
		Use:   "play [input.wav]",
		Short: "Play an audio file through the bridge",
		Long:  "Open the native engine, negotiate hardware parameters and play the given WAV file to completion.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := observability.NewMetrics()
			if err != nil {
				return err
			}
			if telemetry {
				go serveMetrics(listen, m)
			}
			return playback.File(settings, m.Bridge, args[0])
		},
	}

	if err := setupFlags(cmd, settings, &telemetry, &listen); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings, telemetry *bool, listen *string) error {
	cmd.Flags().StringVar(&settings.Bridge.Device, "device", viper.GetString("bridge.device"), "Playback device name, empty for system default")
	cmd.Flags().BoolVar(telemetry, "telemetry", false, "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(listen, "listen", "localhost:8090", "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlag("bridge.device", cmd.Flags().Lookup("device")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func serveMetrics(listen string, m *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(listen, mux); err != nil {
		logging.Error("telemetry endpoint failed", "error", err, "listen", listen)
	}
}
