// defaults.go: default values for the viper configuration.
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for the viper configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "ReachSync")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "reachsync.log")

	// Source settings
	viper.SetDefault("source.baseurl", "https://www.americanwhitewater.org/content/River/detail/id")
	viper.SetDefault("source.traceurl", "https://ofmpub.epa.gov/waters10")
	viper.SetDefault("source.timeout", 30*time.Second)
	viper.SetDefault("source.maxretries", 3)
	viper.SetDefault("source.requestspersec", 2.0)
	viper.SetDefault("source.debug", false)

	// Target settings
	viper.SetDefault("target.token", "")
	viper.SetDefault("target.line.url", "")
	viper.SetDefault("target.centroid.url", "")
	viper.SetDefault("target.timeout", 45*time.Second)
	viper.SetDefault("target.schemattl", 15*time.Minute)
	viper.SetDefault("target.debug", false)

	// Sync settings
	viper.SetDefault("sync.concurrency", 32)
	viper.SetDefault("sync.stageonly", false)
	viper.SetDefault("sync.notifyurls", []string{})

	// Output settings
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "reachsync.db")
}
