package tasks

// Phase identifies a stage of processing for one event.
type Phase string

const (
	PhaseResolvingEvent   Phase = "resolving_event"
	PhaseResolvingTracks  Phase = "resolving_tracks"
	PhaseCreatingPlaylist Phase = "creating_playlist"
	PhaseDone             Phase = "done"
)

// ProgressUpdate is a point-in-time snapshot sent to the progress channel.
type ProgressUpdate struct {
	Phase   Phase
	Event   string // "artist @ date" label for display
	Message string
	Current int // 1-based event index
	Total   int
}

// sendProgress delivers an update without blocking; slow consumers drop
// updates instead of stalling the pipeline.
func (a *Assembler) sendProgress(update ProgressUpdate) {
	if a.progress == nil {
		return
	}
	select {
	case a.progress <- update:
	default:
	}
}
