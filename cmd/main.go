package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/cli"
	"live-quiz-service/internal/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("live-quiz exited")
		os.Exit(1)
	}
}
