// Package pagination expands the first page of a search into every page the
// remote API will serve.
//
// Lookup APIs report a total result count on page 1. The Paginator derives
// the page count from it, caps it at MaxPages, and fetches pages 2..N
// concurrently through the shared Executor, each with a freshly rotated
// credential. Results are sorted back into page order.
//
// Example usage:
//
//	p := pagination.New(pager, executor, rotator, alerts)
//	pages, err := p.Expand(ctx, first)
//
// The paginator:
//   - Returns [first] when the total fits on one page
//   - Never requests a page beyond MaxPages
//   - Reports non-fatal page failures as warnings and drops them
//   - Aborts on the first fatal failure (rate limit, credential, transport)
package pagination
