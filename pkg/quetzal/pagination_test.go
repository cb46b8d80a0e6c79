package quetzal_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

type TestResource struct {
	ID   int
	Name string
}

// pagedFetcher serves fixed pages and counts requests.
type pagedFetcher struct {
	pages map[int]*quetzal.Page[TestResource]
	calls []int
}

func (f *pagedFetcher) fetch(_ context.Context, page int) (*quetzal.Page[TestResource], error) {
	f.calls = append(f.calls, page)

	response, ok := f.pages[page]
	if !ok {
		return &quetzal.Page[TestResource]{Page: page}, nil
	}

	return response, nil
}

func threePages() *pagedFetcher {
	return &pagedFetcher{
		pages: map[int]*quetzal.Page[TestResource]{
			1: {Page: 1, Pages: 3, Total: 5, Results: []TestResource{{ID: 1}, {ID: 2}}},
			2: {Page: 2, Pages: 3, Total: 5, Results: []TestResource{{ID: 3}, {ID: 4}}},
			3: {Page: 3, Pages: 3, Total: 5, Results: []TestResource{{ID: 5}}},
		},
	}
}

func TestPage_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("results key", func(t *testing.T) {
		t.Parallel()

		var page quetzal.Page[TestResource]

		require.NoError(t, json.Unmarshal([]byte(`{"page":1,"pages":2,"total":3,"results":[{"ID":1}]}`), &page))
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 2, page.Pages)
		assert.Equal(t, 3, page.Total)
		assert.Len(t, page.Results, 1)
		assert.True(t, page.HasNext())
	})

	t.Run("data key", func(t *testing.T) {
		t.Parallel()

		var page quetzal.Page[TestResource]

		require.NoError(t, json.Unmarshal([]byte(`{"page":2,"pages":2,"total":3,"data":[{"ID":3}]}`), &page))
		require.Len(t, page.Results, 1)
		assert.Equal(t, 3, page.Results[0].ID)
		assert.False(t, page.HasNext())
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()

		var page quetzal.Page[TestResource]

		require.Error(t, json.Unmarshal([]byte(`{"results":"nope"}`), &page))
	})
}

func TestPaginationIterator_All(t *testing.T) {
	t.Parallel()

	fetcher := threePages()
	iterator := quetzal.NewPaginationIterator(context.Background(), fetcher.fetch)

	assert.True(t, iterator.HasNext())

	items, err := iterator.All()
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, 5, items[4].ID)
	assert.Equal(t, []int{1, 2, 3}, fetcher.calls)
	assert.False(t, iterator.HasNext())

	_, err = iterator.Next()
	assert.ErrorIs(t, err, quetzal.ErrNoMoreItems)
}

func TestPaginationIterator_ForEachStopsOnError(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")
	iterator := quetzal.NewPaginationIterator(context.Background(), threePages().fetch)

	seen := 0
	err := iterator.ForEach(func(item *TestResource) error {
		seen++
		if item.ID == 3 {
			return errStop
		}

		return nil
	})

	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 3, seen)
}

func TestPaginationIterator_FetchError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	iterator := quetzal.NewPaginationIterator(context.Background(), func(context.Context, int) (*quetzal.Page[TestResource], error) {
		return nil, errBoom
	})

	_, err := iterator.Next()
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "fetching page 1")
}

func TestPaginationIterator_MissingPageNumbers(t *testing.T) {
	t.Parallel()

	fetcher := &pagedFetcher{
		pages: map[int]*quetzal.Page[TestResource]{
			1: {Pages: 2, Results: []TestResource{{ID: 1}}},
			2: {Pages: 2, Results: []TestResource{{ID: 2}}},
		},
	}

	items, err := quetzal.NewPaginationIterator(context.Background(), fetcher.fetch).All()
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, []int{1, 2}, fetcher.calls)
}

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("stops at the limit", func(t *testing.T) {
		t.Parallel()

		fetcher := threePages()

		items, total, err := quetzal.Collect(context.Background(), fetcher.fetch, 3)
		require.NoError(t, err)
		assert.Len(t, items, 3)
		assert.Equal(t, 5, total)
		assert.Equal(t, []int{1, 2}, fetcher.calls)
	})

	t.Run("stops at the total", func(t *testing.T) {
		t.Parallel()

		fetcher := threePages()

		items, total, err := quetzal.Collect(context.Background(), fetcher.fetch, 100)
		require.NoError(t, err)
		assert.Len(t, items, 5)
		assert.Equal(t, 5, total)
		assert.Equal(t, []int{1, 2, 3}, fetcher.calls)
	})

	t.Run("stops on an empty page", func(t *testing.T) {
		t.Parallel()

		fetcher := &pagedFetcher{
			pages: map[int]*quetzal.Page[TestResource]{
				1: {Page: 1, Pages: 5, Total: 10, Results: []TestResource{{ID: 1}}},
			},
		}

		items, total, err := quetzal.Collect(context.Background(), fetcher.fetch, 100)
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, 10, total)
		assert.Equal(t, []int{1, 2}, fetcher.calls)
	})
}
