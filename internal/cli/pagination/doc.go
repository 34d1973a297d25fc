// Package pagination provides paging and sorting for CLI listings.
//
//   - PaginationParams: --limit/--offset or --page/--page-size flags and validation
//   - PaginationMeta: metadata describing the returned page
//   - EntrySorter: sorting of ledger entries by a named field
package pagination
