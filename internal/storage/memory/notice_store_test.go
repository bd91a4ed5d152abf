package memory

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

func TestNoticeStoreInsertIsConflictIgnoring(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewNoticeStore()

	maxID, err := store.MaxID(ctx)
	require.NoError(t, err)
	require.Zero(t, maxID)

	inserted, err := store.Insert(ctx, notice.Record{ID: 10, Title: "first"})
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.Insert(ctx, notice.Record{ID: 10, Title: "second"})
	require.NoError(t, err)
	require.False(t, inserted)

	recs, err := store.List(ctx, notice.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "first", recs[0].Title)

	_, err = store.Insert(ctx, notice.Record{})
	require.Error(t, err)
}

func TestNoticeStoreListFiltersAndPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewNoticeStore()
	for i := int64(1); i <= 25; i++ {
		rec := notice.Record{ID: i, Category: "학사", Department: "교무팀", Title: "notice"}
		if i%5 == 0 {
			rec.Category = "장학"
			rec.Content = "Scholarship deadline"
		}
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)
	}

	maxID, err := store.MaxID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(25), maxID)

	page1, err := store.List(ctx, notice.Query{Page: 1})
	require.NoError(t, err)
	require.Len(t, page1, 10)
	require.Equal(t, int64(25), page1[0].ID)
	require.Equal(t, int64(16), page1[9].ID)

	page3, err := store.List(ctx, notice.Query{Page: 3})
	require.NoError(t, err)
	require.Len(t, page3, 5)

	empty, err := store.List(ctx, notice.Query{Page: 9})
	require.NoError(t, err)
	require.Empty(t, empty)

	for _, page := range []int{math.MaxInt, math.MaxInt / 10} {
		far, err := store.List(ctx, notice.Query{Page: page})
		require.NoError(t, err)
		require.Empty(t, far)
	}

	scholarships, err := store.List(ctx, notice.Query{Category: "장학"})
	require.NoError(t, err)
	require.Len(t, scholarships, 5)

	search, err := store.List(ctx, notice.Query{Search: "scholarship"})
	require.NoError(t, err)
	require.Len(t, search, 5)
	require.Equal(t, int64(25), search[0].ID)

	none, err := store.List(ctx, notice.Query{Department: "총학생회"})
	require.NoError(t, err)
	require.Empty(t, none)
}
