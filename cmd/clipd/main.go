package main

import (
	"fmt"

	"github.com/unxlabs/unx-clipboard/internal/app"
	"github.com/unxlabs/unx-clipboard/internal/config"
	"github.com/unxlabs/unx-clipboard/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("clipd")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	core, err := app.NewApp(cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error assembling clipboard core")
	}

	if err = core.Run(); err != nil {
		log.Fatal().Err(err).Msg("clipboard core run error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
