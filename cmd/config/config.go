package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cascadiawater/reachsync/internal/conf"
)

var savePath string

// Command creates the config command for inspecting the effective settings.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: "Print the effective configuration after defaults, config file, " +
			"environment variables and flags have been applied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(settings)
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "Write the effective configuration to a file instead of stdout")

	return cmd
}

func runConfig(settings *conf.Settings) error {
	if savePath != "" {
		return conf.SaveYAMLConfig(savePath, settings)
	}

	// The token grants write access to the feature services, keep it out of
	// terminal output.
	printable := *settings
	if printable.Target.Token != "" {
		printable.Target.Token = "<redacted>"
	}

	yamlData, err := yaml.Marshal(&printable)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if _, err := os.Stdout.Write(yamlData); err != nil {
		return err
	}
	return nil
}
