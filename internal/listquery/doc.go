// Package listquery implements the list-query pipeline applied to list
// responses before they are shown.
//
// # Overview
//
// List endpoints of the BPM API return whole collections. The pipeline turns
// such a collection into one page of results for a Query:
//
//  1. Free-text query: case-folded substring match over the schema's
//     SearchFields. Empty query passes everything.
//  2. View: exact match of the schema's StatusField. Empty or "all" passes
//     everything.
//  3. Structured filters: every FilterClause must be satisfied.
//  4. Sort: stable, by SortBy, ascending or descending.
//  5. Pagination: fixed page size; TotalCount is taken after stage 3.
//
// Stages run in this order and are not configurable.
//
// # Records
//
// A Record is raw JSON. Fields are read with gjson paths, so nested fields
// such as "customer.name" can be queried, filtered and sorted on without
// decoding the record into a Go type first.
//
// # Leniency
//
// Filter values are typed by users and are not validated by the pipeline.
// A clause whose operands cannot be compared evaluates to Indeterminate and
// the record is dropped; Apply never returns an error. Callers that want
// up-front checking use Schema.Validate.
//
// Missing fields satisfy is-blank and fail every other operator, including
// not-equals and not-contains.
package listquery
