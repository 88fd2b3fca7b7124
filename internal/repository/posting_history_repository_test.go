package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/database/dbtest"
	"github.com/maheshrc27/postflow/internal/models"
)

func TestPostingHistory_NewestFirstWithLimit(t *testing.T) {
	repo := NewPostingHistoryRepository(dbtest.New(t))
	ctx := context.Background()

	for i := 0; i < 55; i++ {
		_, err := repo.Create(ctx, &models.PostRecord{
			UserID:         1,
			Provider:       "tiktok",
			PlatformPostID: fmt.Sprintf("p-%d", i),
			Content:        "c",
			CreatedAt:      baseTime.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	records, err := repo.ListByUserID(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, records, DefaultHistoryLimit)
	assert.Equal(t, "p-54", records[0].PlatformPostID)

	records, err = repo.ListByUserID(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestPostingHistory_GetByPlatformPostID(t *testing.T) {
	repo := NewPostingHistoryRepository(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.PostRecord{UserID: 1, Provider: "youtube", PlatformPostID: "vid", Content: "c"})
	require.NoError(t, err)

	record, err := repo.GetByPlatformPostID(ctx, 1, "youtube", "vid")
	require.NoError(t, err)
	assert.Equal(t, "youtube", record.Provider)
	assert.Nil(t, record.Metadata)

	_, err = repo.GetByPlatformPostID(ctx, 2, "youtube", "vid")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPostingHistory_KeepsNonJSONBodyAsString(t *testing.T) {
	repo := NewPostingHistoryRepository(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.PostRecord{
		UserID:         1,
		Provider:       "instagram",
		PlatformPostID: "ig-1",
		Content:        "c",
		Metadata:       []byte("plain text body"),
	})
	require.NoError(t, err)

	rec, err := repo.GetByPlatformPostID(ctx, 1, "instagram", "ig-1")
	require.NoError(t, err)
	assert.JSONEq(t, `"plain text body"`, string(rec.Metadata))
}
