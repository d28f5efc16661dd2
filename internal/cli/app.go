package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/erg0nix/trialchat/internal/app"
	"github.com/erg0nix/trialchat/internal/config"

	"github.com/spf13/cobra"
)

type App struct {
	Config     config.Config
	ConfigPath string
	Services   *app.Services

	logCloser io.Closer
}

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	apiURL, _ := cmd.Flags().GetString("api-url")
	ephemeral, _ := cmd.Flags().GetBool("ephemeral")
	sessionOverride, _ := cmd.Flags().GetString("session")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if ephemeral {
		cfg.Storage.Backend = "memory"
	}
	cfg, err = config.Validate(cfg)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCloser, err := app.SetupLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	services, err := app.NewServices(cfg)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	if id := strings.TrimSpace(sessionOverride); id != "" {
		if _, ok := services.Sessions.Get(id); !ok {
			services.Close()
			logCloser.Close()
			return nil, fmt.Errorf("unknown session %s", id)
		}
		services.Sessions.Switch(id)
		services.Chat.SetSession(id)
	}

	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		Services:   services,
		logCloser:  logCloser,
	}, nil
}

func (a *App) Close() {
	a.Services.Close()
	a.logCloser.Close()
}
