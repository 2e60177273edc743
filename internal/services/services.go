package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/models"
)

// SetlistSource queries an external setlist provider for raw candidate
// records. Implementations return an empty slice, not an error, when the
// provider is unreachable after retries.
type SetlistSource interface {
	// SearchByArtistAndDate returns records for a performer on a calendar date (YYYY-MM-DD).
	SearchByArtistAndDate(ctx context.Context, artist, date string) ([]models.CandidateRecord, error)

	// SearchByVenueCityDate returns records for a venue/city on a calendar date (YYYY-MM-DD).
	SearchByVenueCityDate(ctx context.Context, venue, city, date string) ([]models.CandidateRecord, error)
}

// Catalog searches an external music catalog by free text.
type Catalog interface {
	// SearchTracks returns up to limit candidate tracks for the query.
	// An empty result is a valid, non-error outcome.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error)
}

// PlaylistSink materializes playlist plans in the external catalog.
type PlaylistSink interface {
	// CreatePlaylist creates an empty playlist owned by ownerID and returns its id.
	CreatePlaylist(ctx context.Context, ownerID, name, description string) (string, error)

	// AddTracks appends track ids to a playlist, chunking into provider-sized batches.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// FindPlaylistByName returns the id of an existing playlist with the exact
	// name, or shared.ErrPlaylistNotFound.
	FindPlaylistByName(ctx context.Context, name string) (string, error)
}

const (
	maxAttempts       = 3
	retryBaseDelay    = time.Second
	defaultRetryAfter = 5 * time.Second
	requestTimeout    = 15 * time.Second
)

// rateLimitError signals an HTTP 429 with the provider-requested wait.
type rateLimitError struct {
	wait time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.wait)
}

// doWithRetry runs fn up to maxAttempts times. Between attempts it sleeps the
// provider-requested duration for rate limits, otherwise an increasing
// multiple of retryBaseDelay. Context cancellation aborts immediately.
func doWithRetry(ctx context.Context, logger *log.Logger, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		wait := time.Duration(attempt) * retryBaseDelay
		var rl *rateLimitError
		if errors.As(err, &rl) {
			wait = rl.wait
		}

		logger.Warn("request failed, retrying", "op", op, "attempt", attempt, "wait", wait, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// retryAfterDelay reads the Retry-After header (seconds) from a 429 response,
// falling back to defaultRetryAfter.
func retryAfterDelay(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}
