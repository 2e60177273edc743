package models

import (
	"fmt"
	"strings"
)

// EventQuery is one requested event: who played where, and when.
//
// Venue, City and EventName are optional hints. FestivalHint forces festival
// treatment regardless of how many performers the setlist source reports.
type EventQuery struct {
	Artist       string
	Venue        string
	City         string
	Date         string // calendar date, YYYY-MM-DD
	EventName    string
	FestivalHint bool
}

// Validate checks the required query fields.
func (q EventQuery) Validate() error {
	if strings.TrimSpace(q.Artist) == "" {
		return fmt.Errorf("event query missing artist")
	}
	if strings.TrimSpace(q.Date) == "" {
		return fmt.Errorf("event query missing date")
	}
	return nil
}

// CandidateRecord is one raw performer-at-venue-on-date record as returned by
// the setlist source. Songs preserve the order they were played in and may be
// empty when no setlist was recorded.
type CandidateRecord struct {
	Performer   string
	Venue       string
	City        string
	EventDate   string   // YYYY-MM-DD after client-side normalization
	Songs       []string // ordered, may be empty
	StartTime   string   // "HH:MM" or "HH:MM:SS", may be empty
	LastUpdated string   // provider timestamp, may be empty
}

// LineupEntry is a normalized performer slot built by merging every
// CandidateRecord for the same performer. An empty Songs slice means "no
// setlist recorded" and signals the popularity fallback downstream.
type LineupEntry struct {
	Name        string
	Songs       []string
	StartTime   string
	LastUpdated string
}

// ResolvedEvent is the reconstructed event: either a normal show with one
// headliner plus openers, or a festival with an ordered lineup.
//
// In festival mode Lineup order is the playback order. In normal mode exactly
// one performer is the headliner and it never also appears in Openers.
// Venue and City carry the resolved location and may be empty.
type ResolvedEvent struct {
	IsFestival    bool
	FestivalLabel string
	Venue         string
	City          string
	Headliner     LineupEntry
	Openers       []LineupEntry
	Lineup        []LineupEntry
}

// SongQuery asks for one catalog track. An empty ArtistHint means the title
// search should lean on the catalog's own ranking alone.
type SongQuery struct {
	Title      string
	ArtistHint string
}

// TrackMatch is a best-effort catalog hit. Confidence is on the 0-100
// similarity scale; callers apply their own usability floor.
type TrackMatch struct {
	TrackID    string
	Confidence int
}

// CandidateTrack is one catalog search result.
type CandidateTrack struct {
	ID         string
	Title      string
	Performers []string // ordered, first is the primary performer
	Popularity int
}

// PrimaryPerformer returns the first credited performer, or "".
func (t CandidateTrack) PrimaryPerformer() string {
	if len(t.Performers) == 0 {
		return ""
	}
	return t.Performers[0]
}

// PlaylistPlan is an ordered, deduplicated set of track ids ready for a sink
// to materialize. TrackIDs insertion order is the playback order.
type PlaylistPlan struct {
	Name        string
	Description string
	TrackIDs    []string
}
