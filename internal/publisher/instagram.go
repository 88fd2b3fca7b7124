package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const defaultInstagramGraphURL = "https://graph.instagram.com/v21.0"

type InstagramOptions struct {
	GraphURL   string
	HTTPClient *http.Client
}

type instagramPublisher struct {
	graphURL string
	client   *http.Client
	now      func() time.Time
}

func NewInstagram(opts InstagramOptions) Publisher {
	graphURL := strings.TrimRight(opts.GraphURL, "/")
	if graphURL == "" {
		graphURL = defaultInstagramGraphURL
	}
	return &instagramPublisher{
		graphURL: graphURL,
		client:   defaultHTTPClient(opts.HTTPClient),
		now:      time.Now,
	}
}

func (ig *instagramPublisher) Provider() string { return ProviderInstagram }

// Publish creates a media container (a carousel when more than one media
// url is given) and publishes it.
func (ig *instagramPublisher) Publish(ctx context.Context, acc Account, content string, media []string) (*Result, error) {
	if len(media) == 0 {
		return nil, apperr.InvalidInput("media", "instagram requires at least one image or video url")
	}
	if err := validateMediaURLs(media); err != nil {
		return nil, err
	}
	if acc.ProviderUserID == "" {
		return nil, apperr.InvalidInput("provider_user_id", "instagram business account id not found")
	}
	token, err := accessToken(ProviderInstagram, acc)
	if err != nil {
		return nil, err
	}

	var creationID string
	if len(media) == 1 {
		creationID, err = ig.createContainer(ctx, acc.ProviderUserID, singleContainer(media[0], content, token))
	} else {
		creationID, err = ig.createCarousel(ctx, acc.ProviderUserID, content, media, token)
	}
	if err != nil {
		return nil, ig.wrap(err)
	}

	var published transfer.InstagramIDResponse
	endpoint := fmt.Sprintf("%s/%s/media_publish", ig.graphURL, url.PathEscape(acc.ProviderUserID))
	raw, err := doJSON(ctx, ig.client, http.MethodPost, endpoint, nil, transfer.InstagramPublishRequest{
		CreationID:  creationID,
		AccessToken: token,
	}, &published)
	if err != nil {
		return nil, ig.wrap(err)
	}
	if published.ID == "" {
		return nil, apperr.Publish(ProviderInstagram, "no media id returned from media_publish")
	}

	return &Result{PlatformPostID: published.ID, Raw: raw}, nil
}

func singleContainer(mediaURL, caption, token string) transfer.InstagramContainerRequest {
	req := transfer.InstagramContainerRequest{Caption: caption, AccessToken: token}
	if isVideo(mediaURL) {
		req.VideoURL = mediaURL
		req.MediaType = "REELS"
	} else {
		req.ImageURL = mediaURL
	}
	return req
}

func (ig *instagramPublisher) createCarousel(ctx context.Context, igUserID, caption string, media []string, token string) (string, error) {
	children := make([]string, 0, len(media))
	for _, m := range media {
		item := transfer.InstagramContainerRequest{IsCarouselItem: true, AccessToken: token}
		if isVideo(m) {
			item.VideoURL = m
			item.MediaType = "VIDEO"
		} else {
			item.ImageURL = m
		}
		id, err := ig.createContainer(ctx, igUserID, item)
		if err != nil {
			return "", fmt.Errorf("carousel item %d: %w", len(children), err)
		}
		children = append(children, id)
	}

	return ig.createContainer(ctx, igUserID, transfer.InstagramContainerRequest{
		MediaType:   "CAROUSEL",
		Caption:     caption,
		Children:    children,
		AccessToken: token,
	})
}

func (ig *instagramPublisher) createContainer(ctx context.Context, igUserID string, req transfer.InstagramContainerRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", ig.graphURL, url.PathEscape(igUserID))

	var created transfer.InstagramIDResponse
	if _, err := doJSON(ctx, ig.client, http.MethodPost, endpoint, nil, req, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("no media id returned from Instagram")
	}
	return created.ID, nil
}

// Refresh extends a long-lived token. Instagram uses the token itself as
// its refresh credential.
func (ig *instagramPublisher) Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil || cred.AccessToken == "" {
		return nil, apperr.Publish(ProviderInstagram, "credential has no access token")
	}

	q := url.Values{}
	q.Set("grant_type", "ig_refresh_token")
	q.Set("access_token", cred.AccessToken)
	endpoint := ig.graphURL + "/refresh_access_token?" + q.Encode()

	var result transfer.InstagramRefreshResponse
	if _, err := doJSON(ctx, ig.client, http.MethodGet, endpoint, nil, nil, &result); err != nil {
		return nil, ig.wrap(err)
	}
	if result.AccessToken == "" {
		return nil, apperr.Publish(ProviderInstagram, "refresh returned no access token")
	}

	refreshed := *cred
	refreshed.AccessToken = result.AccessToken
	refreshed.RefreshToken = result.AccessToken
	if result.TokenType != "" {
		refreshed.TokenType = result.TokenType
	}
	refreshed.Expiry = ig.now().Add(time.Duration(result.ExpiresIn) * time.Second).UTC()
	return &refreshed, nil
}

// wrap turns a transport or status failure into a PublishError, preferring
// the Graph API's own error message when one was returned.
func (ig *instagramPublisher) wrap(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		var graphErr transfer.InstagramErrorResponse
		if json.Unmarshal([]byte(se.Body), &graphErr) == nil && graphErr.Error.Message != "" {
			err = fmt.Errorf("status %d: %s (code %d)", se.StatusCode, graphErr.Error.Message, graphErr.Error.Code)
		}
	}
	slog.Info(err.Error(), "provider", ProviderInstagram)
	return &apperr.PublishError{Provider: ProviderInstagram, Cause: err}
}
