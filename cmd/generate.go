package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/encore/internal/events"
	"github.com/desertthunder/encore/internal/resolve"
	"github.com/desertthunder/encore/internal/shared"
	"github.com/desertthunder/encore/internal/tasks"
	"github.com/urfave/cli/v3"
)

var (
	styleCreated = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleHeader  = lipgloss.NewStyle().Bold(true)
)

// Generate runs the setlist-to-playlist pipeline for every event in the
// events file.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	eventsFile := cmd.String("events")
	if eventsFile == "" {
		eventsFile = r.config.Generator.EventsFile
	}
	dryRun := cmd.Bool("dry-run")
	useJSON := cmd.Bool("json")

	if r.setlist == nil {
		return fmt.Errorf("%w: setlist.fm api_key must be set in config.toml", shared.ErrMissingCredentials)
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	queries, err := events.LoadCSV(eventsFile, r.logger)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return r.writePlain("No events to process in %s\n", eventsFile)
	}

	if err := r.spotify.Authenticate(ctx); err != nil {
		return fmt.Errorf("%w: run 'encore auth login' first", err)
	}

	var ownerID string
	if !dryRun {
		if ownerID, err = r.spotify.CurrentUserID(ctx); err != nil {
			return fmt.Errorf("failed to resolve catalog user: %w", err)
		}
	}

	// cache failures degrade to uncached resolution
	db, cache, err := r.openCache()
	if err != nil {
		r.logger.Warnf("match cache unavailable: %v", err)
		cache = nil
	} else {
		defer db.Close()
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.PhaseResolvingEvent:
				r.writePlain("\n[%d/%d] %s\n", update.Current, update.Total, styleHeader.Render(update.Event))
			case tasks.PhaseResolvingTracks:
				r.writePlain("  resolving tracks...\n")
			case tasks.PhaseCreatingPlaylist:
				r.writePlain("  creating playlist...\n")
			case tasks.PhaseDone:
				r.writePlain("  %s\n", update.Message)
			}
		}
	}()

	assembler := tasks.NewAssembler(
		resolve.NewEventResolver(r.setlist, r.logger),
		resolve.NewTrackResolver(r.spotify, r.logger),
		r.spotify, cache,
		tasks.Options{
			OwnerID:         ownerID,
			OpenerTopTracks: r.config.Generator.OpenerTopTracks,
			MinConfidence:   r.config.Generator.MinConfidence,
			HeadlinerFirst:  r.config.Generator.PlaylistOrder == "headliner_first",
			DryRun:          dryRun,
		},
		progressCh, r.logger,
	)

	summary, runErr := assembler.ProcessEvents(ctx, queries)
	close(progressCh)
	<-done

	if runErr != nil {
		return runErr
	}

	if useJSON {
		return r.writeJSON(summary, true)
	}
	return r.writeSummary(summary)
}

func (r *Runner) writeSummary(summary *tasks.RunSummary) error {
	r.writePlain("\n═══════════════════════════════════════\n")
	r.writePlain("%s\n", styleHeader.Render("Run Summary"))
	r.writePlain("═══════════════════════════════════════\n")

	for _, result := range summary.Results {
		label := fmt.Sprintf("%s @ %s", result.Query.Artist, result.Query.Date)
		switch result.Status {
		case tasks.StatusCreated:
			r.writePlain("%s %s → %s (%d tracks)\n", styleCreated.Render("✓"), label, result.PlaylistName, result.TrackCount)
		case tasks.StatusPlanned:
			r.writePlain("%s %s → %s (%d tracks, dry run)\n", styleCreated.Render("•"), label, result.PlaylistName, result.TrackCount)
		case tasks.StatusExists:
			r.writePlain("%s %s → %s already exists\n", styleSkipped.Render("="), label, result.PlaylistName)
		case tasks.StatusSkipped:
			r.writePlain("%s %s skipped: %s\n", styleSkipped.Render("-"), label, result.Reason)
		case tasks.StatusFailed:
			r.writePlain("%s %s failed: %s\n", styleFailed.Render("✗"), label, result.Reason)
		}
	}

	r.writePlain("\nCreated: %d  Planned: %d  Existing: %d  Skipped: %d  Failed: %d\n",
		summary.Created, summary.Planned, summary.Exists, summary.Skipped, summary.Failed)
	return nil
}

// generateCommand runs the generation pipeline over an events file.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen", "run"},
		Usage:   "Generate playlists from an events CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "events",
				Aliases: []string{"e"},
				Usage:   "Path to events CSV file (defaults to generator.events_file)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Build plans without creating playlists",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output run summary as JSON",
			},
		},
		Action: r.Generate,
	}
}
