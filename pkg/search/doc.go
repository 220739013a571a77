// Package search holds the search state of a movieei client.
//
// # Overview
//
// A user types into a search box; every keystroke changes the raw term, but
// requests only go out once the term has been idle for the debounce window.
// Results arrive page by page and are shown as one growing list.
//
// The package is built from three pieces:
//
//   - Params: parsing of the proxy query string (s, page, type)
//   - Accumulate: a pure projection from fetched pages to the visible list,
//     the total result count and whether more pages exist
//   - Session: wires a debounce.Debouncer and a paging.Loader together and
//     exposes SetSearchTerm, LoadMore and Snapshot
//
// # Usage
//
//	s := search.NewSession(ctx, omdbClient, search.Options{InitialTerm: "Marvel"})
//	defer s.Close()
//
//	id, updates := s.Subscribe()
//	defer s.Unsubscribe(id)
//
//	s.SetSearchTerm("Batman")
//	for snap := range updates {
//		render(snap.Movies)
//		if reachedBottom && snap.HasMore {
//			s.LoadMore()
//		}
//	}
//
// # Ordering
//
// Movies are always the concatenation of pages in page order. A page that
// arrives before its predecessors is held back, and responses for a term the
// user already moved away from never reach the list: every page key embeds
// its term, and the loader discards responses from abandoned key spaces.
//
// # Errors
//
// Transport failures surface as FetchFailedMessage. A logical failure from
// the upstream (Response "False", e.g. "Movie not found!") surfaces with the
// upstream message and stops pagination. Nothing is retried.
package search
