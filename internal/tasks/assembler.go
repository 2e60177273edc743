package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/models"
	"github.com/desertthunder/encore/internal/repositories"
	"github.com/desertthunder/encore/internal/resolve"
	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
)

const (
	// maxPlaylistNameLen matches the catalog's playlist name cap.
	maxPlaylistNameLen = 100

	// maxDescriptionLen matches the catalog's description cap.
	maxDescriptionLen = 300
)

// Status is the outcome of processing one event.
type Status string

const (
	StatusCreated Status = "created" // playlist created and populated
	StatusPlanned Status = "planned" // dry run, plan built but not materialized
	StatusExists  Status = "exists"  // a playlist with this name already exists
	StatusSkipped Status = "skipped" // nothing usable to create
	StatusFailed  Status = "failed"  // unrecoverable error for this event
)

// EventResult records the outcome for one requested event.
type EventResult struct {
	Query        models.EventQuery
	Status       Status
	PlaylistID   string
	PlaylistName string
	TrackCount   int
	Reason       string
}

// RunSummary aggregates a whole batch.
type RunSummary struct {
	RunID   string
	Results []EventResult
	Created int
	Planned int
	Exists  int
	Skipped int
	Failed  int
}

func (s *RunSummary) record(result EventResult) {
	s.Results = append(s.Results, result)
	switch result.Status {
	case StatusCreated:
		s.Created++
	case StatusPlanned:
		s.Planned++
	case StatusExists:
		s.Exists++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Options tunes one assembler run.
type Options struct {
	OwnerID         string
	OpenerTopTracks int  // fallback track count for performers without a recorded setlist
	MinConfidence   int  // usability floor for resolved matches, 0-100
	HeadlinerFirst  bool // flip normal-show ordering to headliner before openers
	DryRun          bool // build plans without touching the sink
}

// Assembler runs the setlist-to-playlist pipeline.
type Assembler struct {
	events   *resolve.EventResolver
	tracks   *resolve.TrackResolver
	sink     services.PlaylistSink
	cache    *repositories.MatchCache // optional
	logger   *log.Logger
	opts     Options
	progress chan<- ProgressUpdate
}

// NewAssembler wires the pipeline. cache and progress may be nil.
func NewAssembler(events *resolve.EventResolver, tracks *resolve.TrackResolver, sink services.PlaylistSink, cache *repositories.MatchCache, opts Options, progress chan<- ProgressUpdate, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.OpenerTopTracks <= 0 {
		opts.OpenerTopTracks = 5
	}
	return &Assembler{
		events:   events,
		tracks:   tracks,
		sink:     sink,
		cache:    cache,
		logger:   logger,
		opts:     opts,
		progress: progress,
	}
}

// ProcessEvents runs the pipeline for every query. Events are processed
// independently; only context cancellation aborts the batch.
func (a *Assembler) ProcessEvents(ctx context.Context, queries []models.EventQuery) (*RunSummary, error) {
	summary := &RunSummary{RunID: shared.GenerateID()}
	a.logger.Info("starting run", "run_id", summary.RunID, "events", len(queries))

	for i, query := range queries {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		label := fmt.Sprintf("%s @ %s", query.Artist, query.Date)
		a.sendProgress(ProgressUpdate{Phase: PhaseResolvingEvent, Event: label, Current: i + 1, Total: len(queries)})

		result := a.ProcessEvent(ctx, query)
		summary.record(result)

		a.sendProgress(ProgressUpdate{
			Phase: PhaseDone, Event: label, Current: i + 1, Total: len(queries),
			Message: string(result.Status),
		})
	}

	return summary, nil
}

// ProcessEvent resolves one event and materializes its playlist.
func (a *Assembler) ProcessEvent(ctx context.Context, query models.EventQuery) EventResult {
	result := EventResult{Query: query}
	label := fmt.Sprintf("%s @ %s", query.Artist, query.Date)

	event, err := a.events.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, shared.ErrEventNotFound) {
			result.Status = StatusSkipped
			result.Reason = "no setlist records found"
			return result
		}
		result.Status = StatusFailed
		result.Reason = err.Error()
		return result
	}

	a.sendProgress(ProgressUpdate{Phase: PhaseResolvingTracks, Event: label})

	plan, err := a.buildPlan(ctx, query, event)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = err.Error()
		return result
	}

	result.PlaylistName = plan.Name
	result.TrackCount = len(plan.TrackIDs)

	if len(plan.TrackIDs) == 0 {
		result.Status = StatusSkipped
		result.Reason = "no tracks resolved"
		return result
	}

	// best effort: an existing playlist with this name means a previous run
	// already materialized it; a failed check never blocks creation
	if id, err := a.sink.FindPlaylistByName(ctx, plan.Name); err == nil {
		result.Status = StatusExists
		result.PlaylistID = id
		return result
	} else if !errors.Is(err, shared.ErrPlaylistNotFound) {
		a.logger.Warn("playlist existence check failed, proceeding", "name", plan.Name, "error", err)
	}

	if a.opts.DryRun {
		result.Status = StatusPlanned
		return result
	}

	a.sendProgress(ProgressUpdate{Phase: PhaseCreatingPlaylist, Event: label})

	id, err := a.sink.CreatePlaylist(ctx, a.opts.OwnerID, plan.Name, plan.Description)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = err.Error()
		return result
	}
	if err := a.sink.AddTracks(ctx, id, plan.TrackIDs); err != nil {
		result.Status = StatusFailed
		result.PlaylistID = id
		result.Reason = err.Error()
		return result
	}

	result.Status = StatusCreated
	result.PlaylistID = id
	return result
}

// buildPlan turns a resolved event into an ordered, deduplicated plan.
func (a *Assembler) buildPlan(ctx context.Context, query models.EventQuery, event *models.ResolvedEvent) (models.PlaylistPlan, error) {
	var order []models.LineupEntry
	var name string

	if event.IsFestival {
		order = event.Lineup
		name = fmt.Sprintf("%s - %s", event.FestivalLabel, query.Date)
	} else {
		if a.opts.HeadlinerFirst {
			order = append([]models.LineupEntry{event.Headliner}, event.Openers...)
		} else {
			order = append(append([]models.LineupEntry{}, event.Openers...), event.Headliner)
		}
		name = fmt.Sprintf("%s - %s", event.Headliner.Name, query.Date)
	}

	var descParts []string
	if event.IsFestival {
		descParts = []string{query.Date, event.City}
	} else {
		descParts = []string{query.Date, event.Venue, event.City}
	}
	description := joinNonEmpty(descParts, " - ")

	var trackIDs []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		trackIDs = append(trackIDs, id)
	}

	for _, entry := range order {
		if len(entry.Songs) == 0 {
			matches, err := a.tracks.FallbackTopTracks(ctx, entry.Name, a.opts.OpenerTopTracks)
			if err != nil {
				return models.PlaylistPlan{}, err
			}
			for _, m := range matches {
				add(m.TrackID)
			}
			continue
		}

		for _, song := range entry.Songs {
			match, err := a.resolveSong(ctx, models.SongQuery{Title: song, ArtistHint: entry.Name})
			if err != nil {
				return models.PlaylistPlan{}, err
			}
			if match.TrackID != "" && match.Confidence >= a.opts.MinConfidence {
				add(match.TrackID)
			}
		}
	}

	return models.PlaylistPlan{
		Name:        truncate(name, maxPlaylistNameLen),
		Description: truncate(description, maxDescriptionLen),
		TrackIDs:    trackIDs,
	}, nil
}

func joinNonEmpty(parts []string, sep string) string {
	filtered := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, sep)
}

// resolveSong consults the match cache before the catalog. Raw confidence is
// cached so the usability floor can change between runs; cache writes are
// best effort.
func (a *Assembler) resolveSong(ctx context.Context, query models.SongQuery) (models.TrackMatch, error) {
	if a.cache != nil {
		if match, ok, err := a.cache.Get(query); err != nil {
			a.logger.Warn("match cache read failed", "title", query.Title, "error", err)
		} else if ok {
			return match, nil
		}
	}

	match, err := a.tracks.ResolveSong(ctx, query)
	if err != nil {
		return models.TrackMatch{}, err
	}

	if a.cache != nil {
		if err := a.cache.Put(query, match); err != nil {
			a.logger.Warn("match cache write failed", "title", query.Title, "error", err)
		}
	}
	return match, nil
}

// truncate caps s at max bytes, cutting on a rune boundary before appending
// the ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
