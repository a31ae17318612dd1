package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/datarhei/relay/app/api"
	"github.com/datarhei/relay/log"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	logger := log.New("Relay").WithOutput(log.NewConsoleWriter(os.Stderr, log.Lwarn, true))

	configfile := findConfigfile()

	app, err := api.New(configfile, os.Stderr)
	if err != nil {
		logger.Error().WithError(err).Log("Failed to create new API")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer func() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				proc.Signal(os.Interrupt)
			}
		}()

		for {
			err := app.Start(ctx)
			if !errors.Is(err, api.ErrConfigReload) {
				if err != nil {
					logger.Error().WithError(err).Log("Failed to start API")
				}

				break
			}

			logger.Warn().WithError(err).Log("Config reload requested")

			app.Stop()

			if err := app.Reload(); err != nil {
				logger.Error().WithError(err).Log("Failed to reload config")
				break
			}
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the app
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	cancel()

	app.Destroy()
}

// findConfigfile returns the path to the config file. If no path is given
// in the environment variable RELAY_CONFIGFILE, different standard locations
// will be checked:
// - os.UserConfigDir() + /datarhei-relay/config.json
// - os.UserHomeDir() + /.config/datarhei-relay/config.json
// - ./config/config.json
// If the config doesn't exist in any of these locations, it will be assumed
// at ./config/config.json
func findConfigfile() string {
	configfile := os.Getenv("RELAY_CONFIGFILE")
	if len(configfile) != 0 {
		return configfile
	}

	locations := []string{}

	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "datarhei-relay", "config.json"))
	}

	if dir, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(dir, ".config", "datarhei-relay", "config.json"))
	}

	for _, path := range locations {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		return path
	}

	return "./config/config.json"
}
