// Package resource maps each backend collection to a typed client.
//
// # Overview
//
// Every collection (leads, installs, customers, services, stock, files,
// notifications, installers, events) follows the same shape on the wire:
//
//	GET    /api/<name>          whole collection
//	GET    /api/<name>?id=<id>  one record
//	POST   /api/<name>          create
//	PUT    /api/<name>?id=<id>  update
//	DELETE /api/<name>?id=<id>  delete
//	POST   /api/<name>/<sub>?id=<id>  sub-actions such as "log"
//
// Resource[T] implements that shape once. Lists are fetched in full and then
// filtered, sorted and paginated locally by listquery.Pipeline; the backend
// never sees the query.
//
// # Usage
//
//	cat := resource.NewCatalog(client, listquery.Pipeline{PageSize: 25})
//	page, err := cat.Leads.List(ctx, listquery.Query{Query: "ali", View: "won"})
//	customer, err := cat.Leads.Convert(ctx, page.Items[0].ID)
//
// The CLI and the browser work with collections by name through
// Catalog.Lookup, which returns the untyped Lister view.
//
// # Errors
//
// Errors from the HTTP client are wrapped with the verb and collection name
// ("get leads: ...") and keep their identity, so bpm.IsNotFound and
// errors.Is(err, bpm.ErrUnauthorized) work on them. No business validation
// happens here beyond requiring an id where the path needs one.
//
// # Stale Responses
//
// Latest is for interactive callers that may fire a new list request before
// the previous one returns. Each Begin cancels the prior context; a result is
// published only if its Ticket is still Current.
package resource
