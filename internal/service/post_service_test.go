package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type recordingKicks struct {
	postIDs []int64
	at      []time.Time
	err     error
}

func (k *recordingKicks) ScheduleKick(_ context.Context, postID int64, at time.Time) error {
	k.postIDs = append(k.postIDs, postID)
	k.at = append(k.at, at)
	return k.err
}

func TestPostService_Schedule(t *testing.T) {
	e := newEnv(t)
	kicks := &recordingKicks{}
	svc := NewPostService(e.posts, e.accounts, e.history, e.vault, e.registry, kicks)
	ctx := context.Background()
	acc := e.connect(t, 1, publisher.ProviderTiktok)

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	post, err := svc.Schedule(ctx, 1, &transfer.SchedulePost{
		SocialAccountID: acc,
		Content:         "launch day",
		Media:           []string{"https://cdn.example.com/a.mp4"},
		Metadata:        map[string]any{"campaign": "spring"},
		ScheduledAt:     &at,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusPending, post.Status)
	assert.True(t, post.ScheduledAt.Equal(at))
	assert.Equal(t, []string{"https://cdn.example.com/a.mp4"}, post.MediaURLs())
	assert.Equal(t, "spring", post.Metadata["campaign"])

	require.Len(t, kicks.postIDs, 1)
	assert.Equal(t, post.ID, kicks.postIDs[0])
	assert.True(t, kicks.at[0].Equal(at))
}

func TestPostService_ScheduleSurvivesKickFailure(t *testing.T) {
	e := newEnv(t)
	svc := NewPostService(e.posts, e.accounts, e.history, e.vault, e.registry, &recordingKicks{err: errors.New("redis down")})
	acc := e.connect(t, 1, publisher.ProviderTiktok)

	post, err := svc.Schedule(context.Background(), 1, &transfer.SchedulePost{SocialAccountID: acc, Content: "hi"})
	require.NoError(t, err)
	assert.NotZero(t, post.ID)
}

func TestPostService_ScheduleRejectsForeignAccount(t *testing.T) {
	e := newEnv(t)
	svc := NewPostService(e.posts, e.accounts, e.history, e.vault, e.registry, nil)
	acc := e.connect(t, 2, publisher.ProviderTiktok)

	_, err := svc.Schedule(context.Background(), 1, &transfer.SchedulePost{SocialAccountID: acc, Content: "hi"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	posts, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostService_Remove(t *testing.T) {
	e := newEnv(t)
	svc := NewPostService(e.posts, e.accounts, e.history, e.vault, e.registry, nil)
	ctx := context.Background()
	acc := e.connect(t, 1, publisher.ProviderTiktok)

	post, err := svc.Schedule(ctx, 1, &transfer.SchedulePost{SocialAccountID: acc, Content: "hi"})
	require.NoError(t, err)

	var invalid *apperr.InvalidInputError
	assert.ErrorAs(t, svc.Remove(ctx, 1, 0), &invalid)
	assert.ErrorIs(t, svc.Remove(ctx, 2, post.ID), apperr.ErrNotFound)
	require.NoError(t, svc.Remove(ctx, 1, post.ID))

	posts, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostService_PublishNow(t *testing.T) {
	e := newEnv(t)
	svc := NewPostService(e.posts, e.accounts, e.history, e.vault, e.registry, nil)
	ctx := context.Background()
	acc := e.connect(t, 1, publisher.ProviderTiktok)

	res, err := svc.PublishNow(ctx, 1, &transfer.PublishNow{SocialAccountID: acc, Content: "right now"})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, res.Status)
	assert.Equal(t, publisher.ProviderTiktok, res.Provider)
	assert.Equal(t, "remote-1", res.PlatformPostID)
	assert.NotZero(t, res.HistoryID)
	assert.Equal(t, []string{"right now"}, e.pub.published)

	records, err := svc.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "right now", records[0].Content)
	assert.JSONEq(t, `{"id":"remote-1"}`, string(records[0].Metadata))
}

func TestPostService_PublishNowErrors(t *testing.T) {
	e := newEnv(t)
	svc := NewPostService(e.posts, e.accounts, e.history, e.vault, e.registry, nil)
	ctx := context.Background()

	t.Run("foreign account", func(t *testing.T) {
		acc := e.connect(t, 2, publisher.ProviderTiktok)
		_, err := svc.PublishNow(ctx, 1, &transfer.PublishNow{SocialAccountID: acc, Content: "x"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		acc := e.connect(t, 1, "friendster")
		_, err := svc.PublishNow(ctx, 1, &transfer.PublishNow{SocialAccountID: acc, Content: "x"})
		var unsupported *apperr.UnsupportedProviderError
		assert.ErrorAs(t, err, &unsupported)
	})

	t.Run("publish failure", func(t *testing.T) {
		e.pub.err = apperr.Publish(publisher.ProviderTiktok, "spam_risk_too_many_posts")
		defer func() { e.pub.err = nil }()

		acc := e.connect(t, 1, publisher.ProviderTiktok)
		_, err := svc.PublishNow(ctx, 1, &transfer.PublishNow{SocialAccountID: acc, Content: "x"})
		var pubErr *apperr.PublishError
		require.ErrorAs(t, err, &pubErr)
	})

	records, err := svc.History(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
