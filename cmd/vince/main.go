package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/command"
)

func main() {
	setupLogger()
	os.Exit(command.ExitCode(command.Execute()))
}

// setupLogger applies the baseline logger used until configuration is loaded
func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
