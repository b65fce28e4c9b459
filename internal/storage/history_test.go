package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/garyellow/anan-assistant-go/internal/errors"
)

func TestHistory_AppendAndList(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	id1, err := db.Append(ctx, PageAsk, "一つ目", "answer 1")
	require.NoError(t, err)
	id2, err := db.Append(ctx, PageLINE, "二つ目", "answer 2")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	records, err := db.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, id2, records[0].ID, "newest first")
	assert.Equal(t, PageLINE, records[0].Page)
	assert.Equal(t, "二つ目", records[0].Question)
	assert.Equal(t, "answer 2", records[0].Answer)
	assert.Len(t, records[0].Time, len(TimeLayout))
}

func TestHistory_ListLimit(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	for i := range 60 {
		_, err := db.Append(ctx, PageAsk, fmt.Sprintf("q%d", i), "a")
		require.NoError(t, err)
	}

	records, err := db.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, DefaultHistoryLimit)
	assert.Equal(t, "q59", records[0].Question)

	records, err = db.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestHistory_DeleteOne(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	keep, err := db.Append(ctx, PageAsk, "keep", "a")
	require.NoError(t, err)
	drop, err := db.Append(ctx, PageAsk, "drop", "a")
	require.NoError(t, err)

	require.NoError(t, db.DeleteOne(ctx, drop))

	records, err := db.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, keep, records[0].ID)

	err = db.DeleteOne(ctx, drop)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestHistory_DeleteAllAndCount(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	for range 4 {
		_, err := db.Append(ctx, PageCLI, "q", "a")
		require.NoError(t, err)
	}
	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	deleted, err := db.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	n, err = db.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistory_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			_, err := db.Append(ctx, PageAsk, fmt.Sprintf("q%d", i), "a")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
