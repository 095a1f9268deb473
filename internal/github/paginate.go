package github

import (
	"context"
	"iter"
)

// pageSize is the fixed page size used for every list call. Enumeration
// stops at the first page holding fewer than pageSize items, so no item is
// skipped regardless of total volume.
const pageSize = 100

// pageFunc fetches one page of results, pages starting at 1.
type pageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// paginate drives fetch to exhaustion and yields items lazily. The sequence
// is finite and not restartable: ranging over it a second time re-issues the
// network calls. A page retried after rate limiting is fetched inside fetch
// itself, so items already yielded are never repeated.
func paginate[T any](ctx context.Context, fetch pageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page := 1; ; page++ {
			items, err := fetch(ctx, page)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if len(items) < pageSize {
				return
			}
		}
	}
}

// Collect materializes a paginated sequence into a slice, stopping at the
// first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Count consumes a paginated sequence and returns the number of items.
func Count[T any](seq iter.Seq2[T, error]) (int, error) {
	n := 0
	for _, err := range seq {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
