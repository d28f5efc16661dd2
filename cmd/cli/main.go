package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/erg0nix/trialchat/internal/cli"
	"github.com/erg0nix/trialchat/internal/config"
)

func main() {
	config.LoadDotEnv(".env.local", ".env")

	if err := cli.NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, cli.ErrReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
