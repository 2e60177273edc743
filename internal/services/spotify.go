// Spotify Web API implementation of [Catalog] and [PlaylistSink]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/models"
	"github.com/desertthunder/encore/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultCatalogInterval = 250 * time.Millisecond

	// Spotify caps playlist descriptions at 300 characters and track
	// additions at 100 uris per request.
	maxDescriptionLen  = 300
	addTracksBatchSize = 100
)

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyPlaylistPage struct {
	Items []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"items"`
	Next *string `json:"next"`
}

// SpotifyClient implements [Catalog] and [PlaylistSink] for the Spotify Web
// API. Uses [oauth2] with a long-lived refresh token; access tokens are
// refreshed transparently by the underlying transport.
type SpotifyClient struct {
	config     *oauth2.Config
	creds      shared.SpotifyConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	baseURL    string
	userID     string
}

// NewSpotifyClient creates a Spotify client with the given credentials. An
// empty baseURL selects the production API; a non-positive interval selects
// the default request spacing.
func NewSpotifyClient(creds shared.SpotifyConfig, baseURL string, interval time.Duration, logger *log.Logger) (*SpotifyClient, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}
	if creds.RedirectURI == "" {
		creds.RedirectURI = "http://localhost:8080/callback"
	}
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if interval <= 0 {
		interval = defaultCatalogInterval
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-private",
			"playlist-modify-public",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyClient{
		config:     config,
		creds:      creds,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
		baseURL:    baseURL,
	}, nil
}

// Authenticate wires the refresh-token [oauth2.TokenSource] into the HTTP
// client. Must be called before any API operation.
func (c *SpotifyClient) Authenticate(ctx context.Context) error {
	if c.creds.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	token := &oauth2.Token{RefreshToken: c.creds.RefreshToken}
	client := c.config.Client(ctx, token)
	client.Timeout = requestTimeout
	c.httpClient = client
	return nil
}

// GetAuthURL returns the OAuth2 authorization URL for the one-time flow that
// mints a refresh token.
func (c *SpotifyClient) GetAuthURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the client's [oauth2.Config] for the callback server.
func (c *SpotifyClient) OAuthConfig() *oauth2.Config {
	return c.config
}

// doRequest performs an authenticated request with pacing and retry. The
// response body is decoded into result when result is non-nil.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	return doWithRetry(ctx, c.logger, "spotify."+method+endpoint, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var payload *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			payload = bytes.NewReader(data)
		} else {
			payload = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, payload)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", shared.ErrRateLimited, &rateLimitError{wait: retryAfterDelay(resp)})
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}

// SearchTracks implements [Catalog]. Exhausted retries degrade to an empty
// result; an empty result is also what a legitimate zero-hit search returns.
func (c *SpotifyClient) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)

	var response spotifySearchResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("catalog search exhausted retries, treating as no data", "query", query, "error", err)
		return nil, nil
	}

	tracks := make([]models.CandidateTrack, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		performers := make([]string, 0, len(item.Artists))
		for _, artist := range item.Artists {
			performers = append(performers, artist.Name)
		}
		tracks = append(tracks, models.CandidateTrack{
			ID:         item.ID,
			Title:      item.Name,
			Performers: performers,
			Popularity: item.Popularity,
		})
	}
	return tracks, nil
}

// CurrentUserID returns (and caches) the authenticated user's id.
func (c *SpotifyClient) CurrentUserID(ctx context.Context) (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return "", err
	}

	c.userID = user.ID
	return user.ID, nil
}

// CreatePlaylist implements [PlaylistSink]. Playlists are created private.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, ownerID, name, description string) (string, error) {
	if len(description) > maxDescriptionLen {
		cut := maxDescriptionLen - 3
		for cut > 0 && !utf8.RuneStart(description[cut]) {
			cut--
		}
		description = description[:cut] + "..."
	}

	payload := struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	}{Name: name, Description: description, Public: false}

	var created struct {
		ID string `json:"id"`
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(ownerID))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, &created); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	c.logger.Info("created playlist", "name", name, "id", created.ID)
	return created.ID, nil
}

// AddTracks implements [PlaylistSink], chunking into batches of 100.
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(trackIDs); start += addTracksBatchSize {
		end := start + addTracksBatchSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}

		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, trackURI(id))
		}

		payload := struct {
			URIs []string `json:"uris"`
		}{URIs: uris}

		if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
			return fmt.Errorf("failed to add tracks: %w", err)
		}
	}

	return nil
}

// FindPlaylistByName implements [PlaylistSink] by paging the user's playlists
// and matching the exact name.
func (c *SpotifyClient) FindPlaylistByName(ctx context.Context, name string) (string, error) {
	endpoint := "/me/playlists?limit=50"

	for endpoint != "" {
		var page spotifyPlaylistPage
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return "", err
		}

		for _, item := range page.Items {
			if item.Name == name {
				return item.ID, nil
			}
		}

		endpoint = ""
		if page.Next != nil {
			// Spotify returns an absolute URL for the next page
			endpoint = strings.TrimPrefix(*page.Next, c.baseURL)
		}
	}

	return "", fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
}

// trackURI converts a bare track id into a Spotify URI, passing through
// values that are already URIs.
func trackURI(id string) string {
	if strings.Contains(id, ":") {
		return id
	}
	return "spotify:track:" + id
}
