// package services implements the HTTP clients for the external providers.
//
// Two providers back the pipeline: the setlist.fm REST API, which supplies
// raw performer/venue/date records ([SetlistClient]), and the Spotify Web API,
// which supplies catalog search and playlist storage ([SpotifyClient]).
//
// Both clients own a [rate.Limiter] that enforces a minimum spacing between
// outgoing requests, retry transient failures with increasing backoff, and
// honor provider Retry-After signaling on HTTP 429. Search operations degrade
// to an empty result once retries are exhausted so callers can treat "no
// data" and "unreachable" uniformly; playlist write operations surface their
// errors.
//
// The consumer-facing contracts are the [SetlistSource], [Catalog] and
// [PlaylistSink] interfaces. Engines depend on those, never on the concrete
// clients, which keeps the resolution logic testable without a network.
package services
