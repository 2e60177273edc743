package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/encore/internal/server"
	"github.com/desertthunder/encore/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// AuthLogin performs the one-time OAuth2 flow: starts a local callback
// server, opens the browser for authorization, and saves the refresh token to
// the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	addr, path, err := callbackAddr(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return err
	}

	authURL := r.spotify.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically: %v", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	handler := server.NewOAuthHandler(r.spotify.OAuthConfig(), state)
	token, err := server.RunCallback(ctx, addr, path, handler, authTimeout, r.logger)
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: provider did not return a refresh token", shared.ErrAuthFailed)
	}

	r.config.Credentials.Spotify.RefreshToken = token.RefreshToken
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Refresh token saved to %s\n", r.configPath)
	return nil
}

// AuthURL prints the authorization URL without starting the callback server,
// for machines without a browser.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	return r.writePlain("%s\n", r.spotify.GetAuthURL(state))
}

// AuthStatus reports whether the saved credentials can reach the catalog.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return r.writePlain("✗ Spotify credentials not configured\n")
	}
	if err := r.spotify.Authenticate(ctx); err != nil {
		return r.writePlain("✗ Not authenticated: %v\n", err)
	}

	userID, err := r.spotify.CurrentUserID(ctx)
	if err != nil {
		return r.writePlain("✗ Authentication check failed: %v\n", err)
	}

	return r.writePlain("✓ Authenticated as %s\n", userID)
}

// callbackAddr derives the local listen address and path from the configured
// redirect URI.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Host == "" {
		return "", "", fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	path = parsed.Path
	if path == "" {
		path = "/callback"
	}
	return parsed.Host, path, nil
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize via browser and save the refresh token",
				Action: r.AuthLogin,
			},
			{
				Name:   "url",
				Usage:  "Print the authorization URL without opening a browser",
				Action: r.AuthURL,
			},
			{
				Name:   "status",
				Usage:  "Check whether saved credentials work",
				Action: r.AuthStatus,
			},
		},
	}
}
