package quetzal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Page is the envelope of every list endpoint.
type Page[T any] struct {
	Page    int `json:"page"    yaml:"page"`
	Pages   int `json:"pages"   yaml:"pages"`
	Total   int `json:"total"   yaml:"total"`
	Results []T `json:"results" yaml:"results"`
}

// UnmarshalJSON accepts the items under "results" or "data".
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Page    int `json:"page"`
		Pages   int `json:"pages"`
		Total   int `json:"total"`
		Results []T `json:"results"`
		Data    []T `json:"data"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding page: %w", err)
	}

	p.Page = raw.Page
	p.Pages = raw.Pages
	p.Total = raw.Total

	p.Results = raw.Results
	if p.Results == nil {
		p.Results = raw.Data
	}

	return nil
}

// HasNext reports whether a later page exists.
func (p *Page[T]) HasNext() bool {
	return p.Page < p.Pages
}

// PageFetcher fetches one page, numbered from 1.
type PageFetcher[T any] func(ctx context.Context, page int) (*Page[T], error)

// PaginationIterator walks all items of a listing one at a time.
type PaginationIterator[T any] struct {
	ctx     context.Context
	fetch   PageFetcher[T]
	current *Page[T]
	number  int
	index   int
}

// NewPaginationIterator creates an iterator. No request is made until Next.
func NewPaginationIterator[T any](ctx context.Context, fetch PageFetcher[T]) *PaginationIterator[T] {
	return &PaginationIterator[T]{
		ctx:   ctx,
		fetch: fetch,
	}
}

// HasNext reports whether Next may return another item.
func (it *PaginationIterator[T]) HasNext() bool {
	if it.current == nil {
		return true
	}

	return it.index < len(it.current.Results) || it.current.HasNext()
}

// Next returns the next item, fetching the next page when needed.
func (it *PaginationIterator[T]) Next() (*T, error) {
	for it.current == nil || it.index >= len(it.current.Results) {
		if it.current != nil && !it.current.HasNext() {
			return nil, ErrNoMoreItems
		}

		it.number++

		page, err := it.fetch(it.ctx, it.number)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", it.number, err)
		}

		if page.Page == 0 {
			page.Page = it.number
		}

		if len(page.Results) == 0 {
			it.current = page
			it.index = 0

			return nil, ErrNoMoreItems
		}

		it.current = page
		it.index = 0
	}

	item := &it.current.Results[it.index]
	it.index++

	return item, nil
}

// All collects every remaining item.
func (it *PaginationIterator[T]) All() ([]T, error) {
	var items []T

	err := it.ForEach(func(item *T) error {
		items = append(items, *item)

		return nil
	})

	return items, err
}

// ForEach calls fn for every remaining item and stops at the first error.
func (it *PaginationIterator[T]) ForEach(fn func(*T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if errors.Is(err, ErrNoMoreItems) {
			return nil
		}

		if err != nil {
			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// Collect gathers up to limit items, starting at page 1 and stopping early
// when the listing total is reached. It returns the items and the total.
func Collect[T any](ctx context.Context, fetch PageFetcher[T], limit int) ([]T, int, error) {
	page, err := fetch(ctx, 1)
	if err != nil {
		return nil, 0, err
	}

	items := page.Results
	total := page.Total

	for number := 2; len(items) < limit && len(items) < total; number++ {
		page, err = fetch(ctx, number)
		if err != nil {
			return nil, 0, err
		}

		if len(page.Results) == 0 {
			break
		}

		items = append(items, page.Results...)
	}

	if len(items) > limit {
		items = items[:limit]
	}

	return items, total, nil
}
