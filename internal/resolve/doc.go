// package resolve turns raw provider data into usable domain objects.
//
// [EventResolver] reconstructs a concert from setlist records: it anchors on
// the best artist match for the requested date, widens the search to the
// resolved venue to discover co-performers, merges duplicate records per
// performer, and classifies the result as a normal show (one headliner plus
// openers) or a festival (an ordered lineup).
//
// [TrackResolver] maps a single performed song onto a catalog track with a
// two-pass fuzzy search, and supplies a popularity-ranked fallback for
// performers whose setlist was never recorded.
package resolve
