// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "pcmbridge")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "pcmbridge.log")

	// The legacy backend is preferred over the low-level one, the latter has
	// known stability defects on several devices.
	viper.SetDefault("bridge.backend", "legacy")
	viper.SetDefault("bridge.device", "")
	viper.SetDefault("bridge.debugchecks", false)

	// Safety ceiling for state-change waits, an hour, never expected to be hit.
	viper.SetDefault("bridge.timing.safetyceiling", time.Hour)
	viper.SetDefault("bridge.timing.drainpollinterval", time.Millisecond)
	viper.SetDefault("bridge.timing.draingrace", time.Second)
}
