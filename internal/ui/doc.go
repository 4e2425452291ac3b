// Package ui is the Bubble Tea terminal browser behind `solarops browse`.
//
// # Layout
//
//	┌ solarops  leads  3 unread ─────────────────────────────┐  header
//	│ view new  sort name ▲  search "ali"                    │  toolbar
//	│ id    name       email        phone   address  status  │
//	│ l01   Ali Khan   ali@...      ...     ...      new     │  table
//	│ page 1/2  12 records                                   │  status
//	└ / search  v view  s sort by  →/n next page  ...  q quit ┘  footer
//
// The header reads the state.Store snapshot once per tick (at most every
// second) and shows the unread notification count, or the poller's error
// and offline state.
//
// # Fetching
//
// Every change to the query (search, view, sort, page, collection) starts a
// fetch: the whole collection is loaded with Lister.ListAll and run through a
// listquery.Pipeline in the command goroutine. Fetches are sequenced with a
// resource.Latest, so starting a new one cancels the previous request and a
// late result from a superseded fetch is dropped instead of overwriting
// newer rows. The view cycle is rebuilt from the distinct values of the
// collection's view field on every load.
//
// # Keys
//
//	/        search (enter applies, esc cancels)
//	esc      clear the search
//	v        cycle view (all, then each status value)
//	s / S    cycle sort column / toggle direction
//	n / p    next / previous page (also → / ←)
//	r        reload
//	tab      next collection
//	T        cycle theme
//	?        help
//	q        quit
//
// Row navigation (j/k, pgup/pgdown, g/G) is handled by the bubbles table.
package ui
