package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/encore/internal/matching"
	"github.com/desertthunder/encore/internal/models"
)

// MatchCache stores resolved song-to-track matches keyed by the normalized
// title and artist hint.
type MatchCache struct {
	db *sql.DB
}

// NewMatchCache creates a match cache over an open database. The caller is
// responsible for running migrations first.
func NewMatchCache(db *sql.DB) *MatchCache {
	return &MatchCache{db: db}
}

// Key derives the cache key for a song query. Distinct hints for the same
// title cache independently.
func Key(query models.SongQuery) string {
	return matching.Normalize(query.Title) + "|" + matching.Normalize(query.ArtistHint)
}

// Get returns the cached match for a query. The second return reports whether
// an entry existed; a hit with an empty TrackID is a cached miss.
func (c *MatchCache) Get(query models.SongQuery) (models.TrackMatch, bool, error) {
	var match models.TrackMatch
	err := c.db.QueryRow(
		"SELECT track_id, confidence FROM track_matches WHERE query_key = ?",
		Key(query),
	).Scan(&match.TrackID, &match.Confidence)

	if errors.Is(err, sql.ErrNoRows) {
		return models.TrackMatch{}, false, nil
	}
	if err != nil {
		return models.TrackMatch{}, false, fmt.Errorf("failed to read match cache: %w", err)
	}
	return match, true, nil
}

// Put stores a match for a query, replacing any previous entry. Store the
// zero match to record a confirmed miss.
func (c *MatchCache) Put(query models.SongQuery, match models.TrackMatch) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO track_matches (query_key, track_id, confidence) VALUES (?, ?, ?)",
		Key(query), match.TrackID, match.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to write match cache: %w", err)
	}
	return nil
}

// Stats returns the total number of entries and how many of them are
// confirmed misses.
func (c *MatchCache) Stats() (total, misses int, err error) {
	err = c.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN track_id = '' THEN 1 ELSE 0 END), 0) FROM track_matches",
	).Scan(&total, &misses)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return total, misses, nil
}

// Clear removes every cached entry.
func (c *MatchCache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM track_matches"); err != nil {
		return fmt.Errorf("failed to clear match cache: %w", err)
	}
	return nil
}
