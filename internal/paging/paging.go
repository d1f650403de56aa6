// Package paging implements the cursor pagination used by the upstream
// payments API.
package paging

// Page is one page of records plus the cursor for the next page. An empty
// After means the source is exhausted.
type Page[T any] struct {
	Records []T
	After   string
}

// Walk exhausts a paged source, calling fetch with the previous page's
// cursor until no further cursor is returned. Records accumulate in the
// order the source returns them; nothing is reordered or deduplicated, and
// nothing is cached between invocations. A fetch error aborts the walk.
func Walk[T any](fetch func(after string) (Page[T], error)) ([]T, error) {
	var all []T
	after := ""
	for {
		page, err := fetch(after)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.After == "" {
			return all, nil
		}
		after = page.After
	}
}
