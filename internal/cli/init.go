package cli

import (
	"fmt"
	"os"
	"path/filepath"

	lipgloss "github.com/charmbracelet/lipgloss/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/erg0nix/trialchat/internal/config"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE:  runInitCmd,
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	if configPath == "" {
		configPath = defaultConfigPath()
	}

	path, err := writeDefaultConfig(configPath, force)
	if err != nil {
		return err
	}

	lipgloss.Printf("%s %s\n", styleSuccess.Render("wrote"), path)
	return nil
}

func writeDefaultConfig(path string, force bool) (string, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists; use --force to overwrite", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("init: mkdir: %w", err)
	}

	data, err := toml.Marshal(config.Default())
	if err != nil {
		return "", fmt.Errorf("init: encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	return path, nil
}
