package main

import (
	"context"
	"os"
	"time"

	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := "config.toml"
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warnf("failed to load config, using defaults: %v", err)
		}
	}

	var setlist services.SetlistSource
	if config.Credentials.SetlistFM.APIKey != "" {
		client, err := services.NewSetlistClient(
			config.Credentials.SetlistFM.APIKey, "",
			time.Duration(config.Clients.SetlistIntervalMS)*time.Millisecond, logger,
		)
		if err != nil {
			logger.Warnf("setlist.fm client unavailable: %v", err)
		} else {
			setlist = client
		}
	}

	var spotify *services.SpotifyClient
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		client, err := services.NewSpotifyClient(
			config.Credentials.Spotify, "",
			time.Duration(config.Clients.CatalogIntervalMS)*time.Millisecond, logger,
		)
		if err != nil {
			logger.Warnf("spotify client unavailable: %v", err)
		} else {
			spotify = client
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Setlist:    setlist,
		Spotify:    spotify,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "encore",
		Usage:    "Generate playlists from concert setlists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
