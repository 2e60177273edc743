package resolve

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/matching"
	"github.com/desertthunder/encore/internal/models"
	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
)

const (
	// hintedSearchLimit bounds the first, artist-scoped search pass.
	hintedSearchLimit = 12

	// titleSearchLimit bounds the broader title-only second pass.
	titleSearchLimit = 8

	// fallbackSearchLimit bounds the popularity fallback search; results are
	// re-ranked by popularity before truncation.
	fallbackSearchLimit = 40
)

// parentheticals strips "(Live)", "[Remastered 2011]" and the like from song
// titles before the broader search pass.
var parentheticals = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)

// TrackResolver maps songs onto catalog tracks via a [services.Catalog].
type TrackResolver struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewTrackResolver creates a track resolver over the given catalog.
func NewTrackResolver(catalog services.Catalog, logger *log.Logger) *TrackResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TrackResolver{catalog: catalog, logger: logger}
}

// ResolveSong finds the best catalog track for one performed song.
//
// The first pass searches title and artist hint together; when that yields
// nothing the cleaned title is searched alone. Candidates are scored by
// averaging title similarity against the candidate title and hint similarity
// against the candidate's primary performer. No usability floor is applied
// here; the returned confidence lets callers apply their own.
//
// A miss is not an error: the zero [models.TrackMatch] (empty TrackID) is
// returned when both passes come back empty.
func (r *TrackResolver) ResolveSong(ctx context.Context, query models.SongQuery) (models.TrackMatch, error) {
	title := strings.TrimSpace(query.Title)
	if title == "" {
		return models.TrackMatch{}, fmt.Errorf("%w: empty song title", shared.ErrInvalidInput)
	}

	searchTitle := title
	search := strings.TrimSpace(title + " " + query.ArtistHint)
	candidates, err := r.catalog.SearchTracks(ctx, search, hintedSearchLimit)
	if err != nil {
		return models.TrackMatch{}, err
	}

	if len(candidates) == 0 {
		searchTitle = cleanTitle(title)
		candidates, err = r.catalog.SearchTracks(ctx, searchTitle, titleSearchLimit)
		if err != nil {
			return models.TrackMatch{}, err
		}
	}

	if len(candidates) == 0 {
		r.logger.Debug("no catalog candidates", "title", title, "hint", query.ArtistHint)
		return models.TrackMatch{}, nil
	}

	best := models.TrackMatch{Confidence: -1}
	for _, cand := range candidates {
		score := scoreCandidate(searchTitle, query.ArtistHint, cand)
		if score > best.Confidence {
			best = models.TrackMatch{TrackID: cand.ID, Confidence: score}
		}
	}
	return best, nil
}

// FallbackTopTracks returns up to limit of a performer's most popular catalog
// tracks, for lineup slots with no recorded setlist. Matches come back with
// full confidence so downstream floors never drop them.
func (r *TrackResolver) FallbackTopTracks(ctx context.Context, artist string, limit int) ([]models.TrackMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	candidates, err := r.catalog.SearchTracks(ctx, fmt.Sprintf("artist:%s", artist), fallbackSearchLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		// some catalogs reject field-scoped queries for obscure names
		candidates, err = r.catalog.SearchTracks(ctx, artist, fallbackSearchLimit)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Popularity > candidates[j].Popularity
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	matches := make([]models.TrackMatch, 0, len(candidates))
	for _, cand := range candidates {
		matches = append(matches, models.TrackMatch{TrackID: cand.ID, Confidence: 100})
	}
	return matches, nil
}

// scoreCandidate averages title similarity against the candidate title with
// hint similarity against its primary performer. An absent hint scores zero,
// so hintless resolutions top out at 50.
func scoreCandidate(title, hint string, cand models.CandidateTrack) int {
	titleScore := matching.Similarity(title, cand.Title)
	artistScore := matching.Similarity(hint, cand.PrimaryPerformer())
	return (titleScore + artistScore) / 2
}

// cleanTitle drops parenthesized and bracketed qualifiers and collapses the
// remaining whitespace.
func cleanTitle(title string) string {
	cleaned := parentheticals.ReplaceAllString(title, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return title
	}
	return cleaned
}
