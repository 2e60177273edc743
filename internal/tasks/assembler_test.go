package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/models"
	"github.com/desertthunder/encore/internal/repositories"
	"github.com/desertthunder/encore/internal/resolve"
	"github.com/desertthunder/encore/internal/shared"
)

func testLogger() *log.Logger {
	logger := log.New(io.Discard)
	logger.SetLevel(log.FatalLevel)
	return logger
}

type mockSource struct {
	artistRecords []models.CandidateRecord
	venueRecords  []models.CandidateRecord
}

func (m *mockSource) SearchByArtistAndDate(ctx context.Context, artist, date string) ([]models.CandidateRecord, error) {
	return m.artistRecords, nil
}

func (m *mockSource) SearchByVenueCityDate(ctx context.Context, venue, city, date string) ([]models.CandidateRecord, error) {
	return m.venueRecords, nil
}

type mockCatalog struct {
	results map[string][]models.CandidateTrack
	calls   int
}

func (m *mockCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	m.calls++
	return m.results[query], nil
}

type createdPlaylist struct {
	ownerID, name, description string
}

type mockSink struct {
	created   []createdPlaylist
	added     map[string][]string
	existing  map[string]string // name -> id
	findErr   error
	createErr error
}

func (m *mockSink) CreatePlaylist(ctx context.Context, ownerID, name, description string) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, createdPlaylist{ownerID, name, description})
	return fmt.Sprintf("pl%d", len(m.created)), nil
}

func (m *mockSink) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if m.added == nil {
		m.added = make(map[string][]string)
	}
	m.added[playlistID] = append(m.added[playlistID], trackIDs...)
	return nil
}

func (m *mockSink) FindPlaylistByName(ctx context.Context, name string) (string, error) {
	if m.findErr != nil {
		return "", m.findErr
	}
	if id, ok := m.existing[name]; ok {
		return id, nil
	}
	return "", shared.ErrPlaylistNotFound
}

func singleArtist(id, title string, popularity int, artist string) []models.CandidateTrack {
	return []models.CandidateTrack{{ID: id, Title: title, Performers: []string{artist}, Popularity: popularity}}
}

// normalShowFixtures models a headliner with a recorded setlist plus one
// opener, both resolvable in the catalog.
func normalShowFixtures() (*mockSource, *mockCatalog) {
	source := &mockSource{
		artistRecords: []models.CandidateRecord{{
			Performer: "Pearl Jam", Venue: "United Center", City: "Chicago",
			EventDate: "2024-06-14", Songs: []string{"Even Flow", "Alive"},
		}},
		venueRecords: []models.CandidateRecord{
			{
				Performer: "Pearl Jam", Venue: "United Center", City: "Chicago",
				EventDate: "2024-06-14", Songs: []string{"Even Flow", "Alive"},
			},
			{
				Performer: "Deep Sea Diver", Venue: "United Center", City: "Chicago",
				EventDate: "2024-06-14", Songs: []string{"Shattering The Hourglass"},
			},
		},
	}
	catalog := &mockCatalog{results: map[string][]models.CandidateTrack{
		"Even Flow Pearl Jam":                     singleArtist("ef", "Even Flow", 80, "Pearl Jam"),
		"Alive Pearl Jam":                         singleArtist("al", "Alive", 85, "Pearl Jam"),
		"Shattering The Hourglass Deep Sea Diver": singleArtist("sth", "Shattering The Hourglass", 50, "Deep Sea Diver"),
	}}
	return source, catalog
}

func newTestAssembler(source *mockSource, catalog *mockCatalog, sink *mockSink, cache *repositories.MatchCache, opts Options) *Assembler {
	logger := testLogger()
	return NewAssembler(
		resolve.NewEventResolver(source, logger),
		resolve.NewTrackResolver(catalog, logger),
		sink, cache, opts, nil, logger,
	)
}

func pearlJamQuery() models.EventQuery {
	return models.EventQuery{Artist: "Pearl Jam", Date: "2024-06-14"}
}

func TestProcessEventNormalShow(t *testing.T) {
	source, catalog := normalShowFixtures()
	sink := &mockSink{}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{OwnerID: "listener"})

	result := assembler.ProcessEvent(context.Background(), pearlJamQuery())

	if result.Status != StatusCreated {
		t.Fatalf("Status = %q (%s), want created", result.Status, result.Reason)
	}
	if result.PlaylistName != "Pearl Jam - 2024-06-14" {
		t.Errorf("PlaylistName = %q", result.PlaylistName)
	}
	if len(sink.created) != 1 || sink.created[0].ownerID != "listener" {
		t.Fatalf("created = %+v, want one playlist for listener", sink.created)
	}

	got := sink.added[result.PlaylistID]
	want := []string{"sth", "ef", "al"} // openers before the headliner
	if len(got) != len(want) {
		t.Fatalf("tracks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tracks[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProcessEventHeadlinerFirst(t *testing.T) {
	source, catalog := normalShowFixtures()
	sink := &mockSink{}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{OwnerID: "listener", HeadlinerFirst: true})

	result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
	if result.Status != StatusCreated {
		t.Fatalf("Status = %q (%s), want created", result.Status, result.Reason)
	}

	got := sink.added[result.PlaylistID]
	if len(got) == 0 || got[0] != "ef" {
		t.Errorf("tracks = %v, want headliner tracks first", got)
	}
}

func TestProcessEventFallbackForMissingSetlist(t *testing.T) {
	source, catalog := normalShowFixtures()
	// opener loses its recorded setlist
	source.venueRecords[1].Songs = nil
	catalog.results["artist:Deep Sea Diver"] = []models.CandidateTrack{
		{ID: "dsd2", Title: "B Side", Performers: []string{"Deep Sea Diver"}, Popularity: 40},
		{ID: "dsd1", Title: "Hit Single", Performers: []string{"Deep Sea Diver"}, Popularity: 90},
	}
	sink := &mockSink{}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{OwnerID: "listener", OpenerTopTracks: 2})

	result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
	if result.Status != StatusCreated {
		t.Fatalf("Status = %q (%s), want created", result.Status, result.Reason)
	}

	got := sink.added[result.PlaylistID]
	want := []string{"dsd1", "dsd2", "ef", "al"} // fallback tracks by popularity, then headliner
	if len(got) != len(want) {
		t.Fatalf("tracks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tracks[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProcessEventDeduplicatesTracks(t *testing.T) {
	source, catalog := normalShowFixtures()
	// the live reprise resolves to the same catalog track
	source.artistRecords[0].Songs = []string{"Even Flow", "Even Flow (Reprise)"}
	source.venueRecords[0].Songs = source.artistRecords[0].Songs
	catalog.results["Even Flow (Reprise) Pearl Jam"] = singleArtist("ef", "Even Flow", 80, "Pearl Jam")
	sink := &mockSink{}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{OwnerID: "listener"})

	result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
	if result.Status != StatusCreated {
		t.Fatalf("Status = %q (%s), want created", result.Status, result.Reason)
	}

	got := sink.added[result.PlaylistID]
	counts := make(map[string]int)
	for _, id := range got {
		counts[id]++
	}
	if counts["ef"] != 1 {
		t.Errorf("tracks = %v, want ef exactly once", got)
	}
}

func TestProcessEventConfidenceFloor(t *testing.T) {
	source, catalog := normalShowFixtures()
	// poor match: wrong title, wrong performer
	catalog.results["Alive Pearl Jam"] = singleArtist("bad", "Something Else Entirely", 80, "Tribute Band")
	sink := &mockSink{}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{OwnerID: "listener", MinConfidence: 60})

	result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
	if result.Status != StatusCreated {
		t.Fatalf("Status = %q (%s), want created", result.Status, result.Reason)
	}

	for _, id := range sink.added[result.PlaylistID] {
		if id == "bad" {
			t.Error("low-confidence match should not reach the playlist")
		}
	}
}

func TestProcessEventSkips(t *testing.T) {
	t.Run("unresolvable event", func(t *testing.T) {
		assembler := newTestAssembler(&mockSource{}, &mockCatalog{}, &mockSink{}, nil, Options{})
		result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
		if result.Status != StatusSkipped {
			t.Errorf("Status = %q, want skipped", result.Status)
		}
	})

	t.Run("zero resolved tracks", func(t *testing.T) {
		source, _ := normalShowFixtures()
		sink := &mockSink{}
		assembler := newTestAssembler(source, &mockCatalog{}, sink, nil, Options{})

		result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
		if result.Status != StatusSkipped {
			t.Errorf("Status = %q, want skipped for empty plan", result.Status)
		}
		if len(sink.created) != 0 {
			t.Error("no playlist should be created for an empty plan")
		}
	})

	t.Run("existing playlist", func(t *testing.T) {
		source, catalog := normalShowFixtures()
		sink := &mockSink{existing: map[string]string{"Pearl Jam - 2024-06-14": "old"}}
		assembler := newTestAssembler(source, catalog, sink, nil, Options{})

		result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
		if result.Status != StatusExists || result.PlaylistID != "old" {
			t.Errorf("result = %+v, want exists/old", result)
		}
		if len(sink.created) != 0 {
			t.Error("existing playlist should not be recreated")
		}
	})
}

func TestProcessEventExistenceCheckFailureProceeds(t *testing.T) {
	source, catalog := normalShowFixtures()
	sink := &mockSink{findErr: shared.ErrAPIRequest}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{OwnerID: "listener"})

	result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
	if result.Status != StatusCreated {
		t.Errorf("Status = %q (%s), want created despite failed check", result.Status, result.Reason)
	}
}

func TestProcessEventDryRun(t *testing.T) {
	source, catalog := normalShowFixtures()
	sink := &mockSink{}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{DryRun: true})

	result := assembler.ProcessEvent(context.Background(), pearlJamQuery())
	if result.Status != StatusPlanned {
		t.Fatalf("Status = %q, want planned", result.Status)
	}
	if result.TrackCount != 3 {
		t.Errorf("TrackCount = %d, want 3", result.TrackCount)
	}
	if len(sink.created) != 0 || len(sink.added) != 0 {
		t.Error("dry run must not touch the sink")
	}
}

func TestProcessEventUsesMatchCache(t *testing.T) {
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	defer db.Close()
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	cache := repositories.NewMatchCache(db)

	source, catalog := normalShowFixtures()
	assembler := newTestAssembler(source, catalog, &mockSink{existing: map[string]string{"Pearl Jam - 2024-06-14": "old"}}, cache, Options{})

	assembler.ProcessEvent(context.Background(), pearlJamQuery())
	firstRun := catalog.calls

	assembler.ProcessEvent(context.Background(), pearlJamQuery())
	if catalog.calls != firstRun {
		t.Errorf("catalog calls grew from %d to %d, want cached resolutions on rerun", firstRun, catalog.calls)
	}
}

func TestProcessEventsIsolation(t *testing.T) {
	source, catalog := normalShowFixtures()
	sink := &mockSink{createErr: shared.ErrAPIRequest}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{})

	summary, err := assembler.ProcessEvents(context.Background(), []models.EventQuery{
		pearlJamQuery(),
		{Date: "2024-06-14"}, // missing artist
	})
	if err != nil {
		t.Fatalf("ProcessEvents() error = %v", err)
	}

	if len(summary.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2 (failures must not abort the batch)", len(summary.Results))
	}
	if summary.Failed != 2 {
		t.Errorf("summary = %+v, want both events recorded as failed", summary)
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	name := strings.Repeat("é", 60) // 120 bytes, a rune straddles the cap
	got := truncate(name, maxPlaylistNameLen)

	if len(got) > maxPlaylistNameLen {
		t.Errorf("len(got) = %d, want at most %d", len(got), maxPlaylistNameLen)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncate() = %q, want valid UTF-8", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncate() = %q, want ellipsis suffix", got)
	}
	if short := truncate("Pearl Jam", maxPlaylistNameLen); short != "Pearl Jam" {
		t.Errorf("truncate() = %q, want short names untouched", short)
	}
}

func TestProcessEventFestivalOrder(t *testing.T) {
	source := &mockSource{
		artistRecords: []models.CandidateRecord{{
			Performer: "Headline Act", Venue: "Grant Park", EventDate: "2024-08-01",
			Songs: []string{"Closer"}, StartTime: "21:00",
		}},
		venueRecords: []models.CandidateRecord{
			{Performer: "Headline Act", Venue: "Grant Park", EventDate: "2024-08-01", Songs: []string{"Closer"}, StartTime: "21:00"},
			{Performer: "Afternoon Band", Venue: "Grant Park", EventDate: "2024-08-01", Songs: []string{"First"}, StartTime: "14:00"},
			{Performer: "Evening Band", Venue: "Grant Park", EventDate: "2024-08-01", Songs: []string{"Middle"}, StartTime: "18:00"},
		},
	}
	catalog := &mockCatalog{results: map[string][]models.CandidateTrack{
		"Closer Headline Act":  singleArtist("c", "Closer", 80, "Headline Act"),
		"First Afternoon Band": singleArtist("f", "First", 60, "Afternoon Band"),
		"Middle Evening Band":  singleArtist("m", "Middle", 70, "Evening Band"),
	}}
	sink := &mockSink{}
	assembler := newTestAssembler(source, catalog, sink, nil, Options{OwnerID: "listener"})

	result := assembler.ProcessEvent(context.Background(), models.EventQuery{
		Artist: "Headline Act", Date: "2024-08-01", EventName: "Lolla",
	})
	if result.Status != StatusCreated {
		t.Fatalf("Status = %q (%s), want created", result.Status, result.Reason)
	}
	if result.PlaylistName != "Lolla - 2024-08-01" {
		t.Errorf("PlaylistName = %q, want festival label naming", result.PlaylistName)
	}

	got := sink.added[result.PlaylistID]
	want := []string{"f", "m", "c"} // set-time order
	if len(got) != len(want) {
		t.Fatalf("tracks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tracks[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
