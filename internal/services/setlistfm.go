// setlist.fm implementation of [SetlistSource]
//
// Response types based on https://api.setlist.fm/docs/1.0/index.html
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/models"
	"github.com/desertthunder/encore/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultSetlistBaseURL = "https://api.setlist.fm/rest/1.0"

	// setlist.fm expects dd-MM-yyyy in search parameters.
	setlistDateLayout = "02-01-2006"
	queryDateLayout   = "2006-01-02"

	defaultSetlistInterval = 600 * time.Millisecond
)

type setlistSearchResponse struct {
	Setlist []setlistRecord `json:"setlist"`
}

type setlistRecord struct {
	EventDate   string `json:"eventDate"` // dd-MM-yyyy
	LastUpdated string `json:"lastUpdated"`
	StartTime   string `json:"startTime"`
	Artist      struct {
		Name string `json:"name"`
	} `json:"artist"`
	Venue struct {
		Name string `json:"name"`
		City struct {
			Name string `json:"name"`
		} `json:"city"`
	} `json:"venue"`
	Sets struct {
		Set []struct {
			Name string `json:"name"`
			Song []struct {
				Name string `json:"name"`
			} `json:"song"`
		} `json:"set"`
	} `json:"sets"`
}

// SetlistClient implements [SetlistSource] against the setlist.fm REST API.
//
// The embedded limiter enforces a minimum spacing between outgoing requests;
// setlist.fm throttles aggressively on free-tier keys.
type SetlistClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSetlistClient creates a setlist.fm client. An empty baseURL selects the
// production API; a non-positive interval selects the default spacing.
func NewSetlistClient(apiKey, baseURL string, interval time.Duration, logger *log.Logger) (*SetlistClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: setlist.fm api key", shared.ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = defaultSetlistBaseURL
	}
	if interval <= 0 {
		interval = defaultSetlistInterval
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &SetlistClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
	}, nil
}

// SearchByArtistAndDate queries setlists for a performer on a calendar date.
func (c *SetlistClient) SearchByArtistAndDate(ctx context.Context, artist, date string) ([]models.CandidateRecord, error) {
	providerDate, err := toProviderDate(date)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("artistName", artist)
	params.Set("date", providerDate)

	return c.search(ctx, params)
}

// SearchByVenueCityDate queries setlists for a venue and city on a calendar
// date. Empty venue or city hints are omitted from the query.
func (c *SetlistClient) SearchByVenueCityDate(ctx context.Context, venue, city, date string) ([]models.CandidateRecord, error) {
	providerDate, err := toProviderDate(date)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if venue != "" {
		params.Set("venueName", venue)
	}
	if city != "" {
		params.Set("cityName", city)
	}
	params.Set("date", providerDate)

	return c.search(ctx, params)
}

// search performs the GET with retry and pacing. Exhausted retries degrade to
// an empty result so callers treat "unreachable" the same as "no match".
func (c *SetlistClient) search(ctx context.Context, params url.Values) ([]models.CandidateRecord, error) {
	var response setlistSearchResponse

	err := doWithRetry(ctx, c.logger, "setlistfm.search", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		searchURL := c.baseURL + "/search/setlists?" + params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", shared.ErrRateLimited, &rateLimitError{wait: retryAfterDelay(resp)})
		case resp.StatusCode == http.StatusNotFound:
			// setlist.fm answers 404 for searches with zero hits
			response = setlistSearchResponse{}
			return nil
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("%w: setlist.fm status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		response = setlistSearchResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("setlist search exhausted retries, treating as no data", "error", err)
		return nil, nil
	}

	records := make([]models.CandidateRecord, 0, len(response.Setlist))
	for _, raw := range response.Setlist {
		records = append(records, raw.toCandidate())
	}
	return records, nil
}

// toCandidate flattens a wire record into a CandidateRecord, normalizing the
// event date back to YYYY-MM-DD and preserving song order across sets.
func (r setlistRecord) toCandidate() models.CandidateRecord {
	var songs []string
	for _, set := range r.Sets.Set {
		for _, song := range set.Song {
			if song.Name != "" {
				songs = append(songs, song.Name)
			}
		}
	}

	eventDate := r.EventDate
	if parsed, err := time.Parse(setlistDateLayout, r.EventDate); err == nil {
		eventDate = parsed.Format(queryDateLayout)
	}

	return models.CandidateRecord{
		Performer:   r.Artist.Name,
		Venue:       r.Venue.Name,
		City:        r.Venue.City.Name,
		EventDate:   eventDate,
		Songs:       songs,
		StartTime:   r.StartTime,
		LastUpdated: r.LastUpdated,
	}
}

// toProviderDate converts a YYYY-MM-DD query date into setlist.fm's dd-MM-yyyy.
func toProviderDate(date string) (string, error) {
	parsed, err := time.Parse(queryDateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not YYYY-MM-DD", shared.ErrInvalidDate, date)
	}
	return parsed.Format(setlistDateLayout), nil
}
