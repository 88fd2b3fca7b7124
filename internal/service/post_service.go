package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const PublishNowTimeout = 5 * time.Minute

type PostService interface {
	Schedule(ctx context.Context, userID int64, req *transfer.SchedulePost) (*models.ScheduledPost, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	Remove(ctx context.Context, userID, postID int64) error
	PublishNow(ctx context.Context, userID int64, req *transfer.PublishNow) (*transfer.PublishNowResult, error)
	History(ctx context.Context, userID int64, limit int) ([]*models.PostRecord, error)
}

type postService struct {
	pr         repository.PostRepository
	ac         repository.SocialAccountRepository
	ph         repository.PostingHistoryRepository
	vault      Sealer
	publishers PublisherSource
	kicks      KickScheduler
}

// NewPostService builds the post service. kicks may be nil, in which case
// scheduled posts wait for the next periodic dispatch tick.
func NewPostService(
	pr repository.PostRepository,
	ac repository.SocialAccountRepository,
	ph repository.PostingHistoryRepository,
	vault Sealer,
	publishers PublisherSource,
	kicks KickScheduler) PostService {
	return &postService{
		pr:         pr,
		ac:         ac,
		ph:         ph,
		vault:      vault,
		publishers: publishers,
		kicks:      kicks,
	}
}

func (s *postService) Schedule(ctx context.Context, userID int64, req *transfer.SchedulePost) (*models.ScheduledPost, error) {
	if req == nil {
		return nil, apperr.InvalidInput("body", "request body is required")
	}

	if _, err := s.ac.GetByIDForUser(ctx, userID, req.SocialAccountID); err != nil {
		return nil, err
	}

	metadata := make(map[string]any, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if len(req.Media) > 0 {
		metadata[models.MetadataMedia] = req.Media
	}

	post := &models.ScheduledPost{
		UserID:          userID,
		SocialAccountID: req.SocialAccountID,
		Content:         req.Content,
		Metadata:        metadata,
	}
	if req.ScheduledAt != nil {
		post.ScheduledAt = *req.ScheduledAt
	}

	postID, err := s.pr.Enqueue(ctx, post)
	if err != nil {
		return nil, err
	}

	if s.kicks != nil {
		if err := s.kicks.ScheduleKick(ctx, postID, post.ScheduledAt); err != nil {
			slog.Warn("unable to schedule dispatch kick", "post_id", postID, "error", err)
		}
	}

	return s.pr.GetByID(ctx, postID)
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if postID <= 0 {
		err := apperr.InvalidInput("id", "post id is not valid")
		slog.Info(err.Error())
		return err
	}
	return s.pr.Remove(ctx, userID, postID)
}

// PublishNow publishes synchronously and records the result in history.
// Errors are returned to the caller rather than stored on a post.
func (s *postService) PublishNow(ctx context.Context, userID int64, req *transfer.PublishNow) (*transfer.PublishNowResult, error) {
	if req == nil {
		return nil, apperr.InvalidInput("body", "request body is required")
	}

	acc, err := s.ac.GetByIDForUser(ctx, userID, req.SocialAccountID)
	if err != nil {
		return nil, err
	}

	cred, err := s.vault.DecryptCredential(acc.EncryptedCredential)
	if err != nil {
		slog.Info(err.Error(), "account_id", acc.ID)
		return nil, err
	}

	pub, err := s.publishers.Get(acc.Provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, PublishNowTimeout)
	defer cancel()

	res, err := pub.Publish(ctx, publisher.Account{
		ID:             acc.ID,
		UserID:         acc.UserID,
		ProviderUserID: acc.ProviderUserID,
		Credential:     cred,
	}, req.Content, req.Media)
	if err != nil {
		slog.Info("publish now failed", "provider", acc.Provider, "account_id", acc.ID, "error", err)
		return nil, err
	}

	record := &models.PostRecord{
		UserID:         userID,
		Provider:       acc.Provider,
		PlatformPostID: res.PlatformPostID,
		Content:        req.Content,
		Metadata:       res.Raw,
	}
	historyID, err := s.ph.Create(context.WithoutCancel(ctx), record)
	if err != nil {
		// The post is live; losing the history row must not hide that.
		slog.Error("published but failed to record history",
			"provider", acc.Provider, "platform_post_id", res.PlatformPostID, "error", err)
	}

	return &transfer.PublishNowResult{
		Status:         models.PostStatusPublished,
		Provider:       acc.Provider,
		PlatformPostID: res.PlatformPostID,
		HistoryID:      historyID,
	}, nil
}

func (s *postService) History(ctx context.Context, userID int64, limit int) ([]*models.PostRecord, error) {
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}
	records, err := s.ph.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return records, nil
}
