// package repositories contains the persistence layer.
//
// [MatchCache] memoizes song-to-track resolutions in SQLite so reruns skip
// catalog searches they have already paid for. Confirmed misses are cached
// too, with an empty track id.
package repositories
