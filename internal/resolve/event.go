package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/matching"
	"github.com/desertthunder/encore/internal/models"
	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
)

const (
	// headlinerNameThreshold is the minimum similarity between the requested
	// artist and a lineup performer for that performer to claim the
	// headliner slot by name.
	headlinerNameThreshold = 80

	// festivalPerformerMin is the distinct-performer count at one
	// venue/city/date at which an event is treated as a festival.
	festivalPerformerMin = 3

	// artistMatchThreshold is the minimum similarity for a record to anchor
	// the venue/city resolution.
	artistMatchThreshold = 60
)

// lastUpdatedLayouts covers the timestamp shapes the setlist provider emits.
var lastUpdatedLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// EventResolver reconstructs events from a [services.SetlistSource].
type EventResolver struct {
	source services.SetlistSource
	logger *log.Logger
}

// NewEventResolver creates an event resolver over the given source.
func NewEventResolver(source services.SetlistSource, logger *log.Logger) *EventResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &EventResolver{source: source, logger: logger}
}

// Resolve reconstructs the event described by query.
//
// Returns [shared.ErrEventNotFound] when no record matches the queried date,
// or when no record matches the artist and the venue lineup is too small to
// be a festival.
func (r *EventResolver) Resolve(ctx context.Context, query models.EventQuery) (*models.ResolvedEvent, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	artistRecords, err := r.source.SearchByArtistAndDate(ctx, query.Artist, query.Date)
	if err != nil {
		return nil, err
	}
	artistRecords = filterByDate(artistRecords, query.Date)

	anchor := pickAnchor(artistRecords, query)

	venue, city := query.Venue, query.City
	if anchor != nil {
		venue, city = anchor.Venue, anchor.City
	}

	var venueRecords []models.CandidateRecord
	if venue != "" || city != "" {
		venueRecords, err = r.source.SearchByVenueCityDate(ctx, venue, city, query.Date)
		if err != nil {
			return nil, err
		}
		venueRecords = filterByDate(venueRecords, query.Date)
	}

	lineup := mergeLineup(filterByVenue(artistRecords, venue), venueRecords)
	if len(lineup) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", shared.ErrEventNotFound, query.Artist, query.Date)
	}

	// Without an artist match, only a festival-sized lineup counts as the
	// queried event; a smaller venue-only result is some other band's show.
	if anchor == nil && !query.FestivalHint && len(lineup) < festivalPerformerMin {
		return nil, fmt.Errorf("%w: %s on %s", shared.ErrEventNotFound, query.Artist, query.Date)
	}

	event := classify(lineup, query, venue, city)
	r.logger.Debug("resolved event",
		"artist", query.Artist, "date", query.Date,
		"festival", event.IsFestival, "performers", len(lineup))
	return event, nil
}

// pickAnchor selects the record that best matches the requested artist,
// preferring the requested venue on ties. Returns nil when no record clears
// the match threshold.
func pickAnchor(records []models.CandidateRecord, query models.EventQuery) *models.CandidateRecord {
	var best *models.CandidateRecord
	bestScore, bestVenue := -1, -1

	for i := range records {
		rec := &records[i]
		score := matching.Similarity(query.Artist, rec.Performer)
		venueScore := 0
		if query.Venue != "" {
			venueScore = matching.Similarity(query.Venue, rec.Venue)
		}
		if score > bestScore || (score == bestScore && venueScore > bestVenue) {
			best, bestScore, bestVenue = rec, score, venueScore
		}
	}

	if bestScore < artistMatchThreshold {
		return nil
	}
	return best
}

// filterByDate keeps records whose event date equals the queried date. The
// provider filters server-side too, but stray off-date records still appear.
func filterByDate(records []models.CandidateRecord, date string) []models.CandidateRecord {
	filtered := make([]models.CandidateRecord, 0, len(records))
	for _, rec := range records {
		if rec.EventDate == date {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// filterByVenue drops records from other venues once a venue is resolved, so
// an artist's second show on the same date does not bleed into the lineup.
func filterByVenue(records []models.CandidateRecord, venue string) []models.CandidateRecord {
	if venue == "" {
		return records
	}
	key := matching.Normalize(venue)
	filtered := make([]models.CandidateRecord, 0, len(records))
	for _, rec := range records {
		if matching.Normalize(rec.Venue) == key {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// mergeLineup folds candidate records into one entry per performer, keyed by
// the normalized name and ordered by first appearance. Songs from duplicate
// records are appended with exact-title dedupe, preserving played order.
func mergeLineup(groups ...[]models.CandidateRecord) []models.LineupEntry {
	index := make(map[string]int)
	var lineup []models.LineupEntry

	for _, records := range groups {
		for _, rec := range records {
			key := matching.Normalize(rec.Performer)
			if key == "" {
				continue
			}

			pos, ok := index[key]
			if !ok {
				index[key] = len(lineup)
				lineup = append(lineup, models.LineupEntry{
					Name:        rec.Performer,
					StartTime:   rec.StartTime,
					LastUpdated: rec.LastUpdated,
				})
				pos = len(lineup) - 1
			}

			entry := &lineup[pos]
			entry.Songs = appendSongs(entry.Songs, rec.Songs)
			if entry.StartTime == "" {
				entry.StartTime = rec.StartTime
			}
			if entry.LastUpdated == "" {
				entry.LastUpdated = rec.LastUpdated
			}
		}
	}
	return lineup
}

func appendSongs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	for _, s := range incoming {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		existing = append(existing, s)
	}
	return existing
}

// classify splits the merged lineup into a festival lineup or a headliner
// with openers.
func classify(lineup []models.LineupEntry, query models.EventQuery, venue, city string) *models.ResolvedEvent {
	if query.FestivalHint || len(lineup) >= festivalPerformerMin {
		label := query.EventName
		if label == "" {
			label = query.Artist
		}

		ordered := make([]models.LineupEntry, len(lineup))
		copy(ordered, lineup)
		sortLineup(ordered)

		return &models.ResolvedEvent{
			IsFestival:    true,
			FestivalLabel: label,
			Venue:         venue,
			City:          city,
			Lineup:        ordered,
		}
	}

	headliner := pickHeadliner(lineup, query.Artist)

	openers := make([]models.LineupEntry, 0, len(lineup)-1)
	for i, entry := range lineup {
		if i != headliner {
			openers = append(openers, entry)
		}
	}
	sortLineup(openers)

	return &models.ResolvedEvent{
		Venue:     venue,
		City:      city,
		Headliner: lineup[headliner],
		Openers:   openers,
	}
}

// pickHeadliner returns the index of the lineup entry claiming the headliner
// slot: the best name match when it clears the threshold, otherwise the
// performer with the longest merged setlist.
func pickHeadliner(lineup []models.LineupEntry, artist string) int {
	bestIdx, bestScore := 0, -1
	for i, entry := range lineup {
		if score := matching.Similarity(artist, entry.Name); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore >= headlinerNameThreshold {
		return bestIdx
	}

	longest, most := 0, -1
	for i, entry := range lineup {
		if len(entry.Songs) > most {
			longest, most = i, len(entry.Songs)
		}
	}
	return longest
}

// sortLineup orders entries by start time ascending with absent times last,
// then by provider update timestamp ascending with absent timestamps last,
// then by lowercased name.
func sortLineup(entries []models.LineupEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, okI := parseClock(entries[i].StartTime)
		tj, okJ := parseClock(entries[j].StartTime)
		if okI != okJ {
			return okI
		}
		if okI && ti != tj {
			return ti < tj
		}

		ui, okI := parseUpdated(entries[i].LastUpdated)
		uj, okJ := parseUpdated(entries[j].LastUpdated)
		if okI != okJ {
			return okI
		}
		if okI && !ui.Equal(uj) {
			return ui.Before(uj)
		}

		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

// parseClock converts "HH:MM" or "HH:MM:SS" into seconds since midnight.
func parseClock(s string) (int, bool) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
		}
	}
	return 0, false
}

func parseUpdated(s string) (time.Time, bool) {
	for _, layout := range lastUpdatedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
