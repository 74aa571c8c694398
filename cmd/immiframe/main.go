// Command immiframe keeps a Home Assistant photo frame supplied with themed
// pictures from an Immich library.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/logger"
)

// CLI flags
var (
	configFlag       string
	logLevelFlag     string
	immichURLFlag    string
	immichAPIKeyFlag string
)

var rootCmd = &cobra.Command{
	Use:   "immiframe",
	Short: "Themed Immich photo frame for Home Assistant",
	Long: `immiframe periodically picks a theme, selects matching photos from Immich,
caches reduced renditions in a directory Home Assistant serves, and notifies
Home Assistant when a new set is live.

Examples:
  immiframe serve
  immiframe once --config /config/immiframe.yaml
  immiframe check
  immiframe config --log-level debug`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDefaultLogger(logger.NewFromEnv(logger.LoadFromEnv().WithLevel(logLevelFlag)))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Path to the YAML configuration file")
	flags.StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&immichURLFlag, "immich-url", "", "Immich server URL")
	flags.StringVar(&immichAPIKeyFlag, "immich-api-key", "", "Immich API key")

	rootCmd.AddCommand(serveCmd, onceCmd, checkCmd, configCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// loadConfig applies CLI overrides on top of file and environment, then
// validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag,
		config.WithOverride("immich.url", immichURLFlag),
		config.WithOverride("immich.api_key", immichAPIKeyFlag),
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
