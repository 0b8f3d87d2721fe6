package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rovercam/rovercam/internal"
	"github.com/rovercam/rovercam/pkg/logger"
)

var log = logger.Get("Main")

// main is the entry point to the program. Configuration is loaded from the
// YAML file given by -config (env vars override, and a missing file falls
// back to env-only config), after which the server runs until interrupted.
func main() {
	configPath := flag.String("config", "rovercam.yaml", "path to the YAML configuration file")
	flag.Parse()

	config := internal.RoverCamConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Emit(logger.FATAL, "Failed to load configuration: %s\n", err.Error())
			os.Exit(1)
		}

		if err := config.LoadFromEnv(); err != nil {
			log.Emit(logger.FATAL, "Failed to load configuration: %s\n", err.Error())
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "RoverCam stopped due to error: %s\n", err.Error())
		os.Exit(1)
	}
}
