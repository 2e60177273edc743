// package models defines the data model for the setlist playlist generator.
//
// Values flow one way through the pipeline: an EventQuery is resolved into a
// ResolvedEvent, whose lineup songs become SongQuery items, which resolve to
// TrackMatch values collected into a PlaylistPlan. Each stage produces a new
// value; nothing is mutated after being handed to the next stage, and nothing
// has identity beyond a single run.
package models
