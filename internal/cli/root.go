package cli

import (
	"path/filepath"

	"github.com/erg0nix/trialchat/internal/config"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trialchat [prompt]",
		Short:         "Chat with the clinical trial intelligence assistant",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE:          runCmd,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("api-url", "", "backend base URL")
	rootCmd.PersistentFlags().String("session", "", "session id to use instead of the active one")
	rootCmd.PersistentFlags().Bool("ephemeral", false, "keep sessions in memory only")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newInitCmd())

	return rootCmd
}

func defaultConfigPath() string {
	return filepath.Join(config.Default().DataDir, "config.toml")
}

func loadConfig(path string) (config.Config, error) {
	configPath := path
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	return config.LoadOrCreate(configPath)
}
