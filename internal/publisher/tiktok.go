package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	defaultTiktokAPIURL = "https://open.tiktokapis.com"
	tiktokTitleLimit    = 90
)

type TiktokOptions struct {
	APIURL       string
	ClientKey    string
	ClientSecret string
	HTTPClient   *http.Client
}

type tiktokPublisher struct {
	apiURL       string
	clientKey    string
	clientSecret string
	client       *http.Client
	now          func() time.Time
}

func NewTiktok(opts TiktokOptions) Publisher {
	apiURL := strings.TrimRight(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultTiktokAPIURL
	}
	return &tiktokPublisher{
		apiURL:       apiURL,
		clientKey:    opts.ClientKey,
		clientSecret: opts.ClientSecret,
		client:       defaultHTTPClient(opts.HTTPClient),
		now:          time.Now,
	}
}

func (s *tiktokPublisher) Provider() string { return ProviderTiktok }

// Publish starts a direct post: one video pulled from its url, or a photo
// post made of image urls. The publish id TikTok returns identifies the post.
func (s *tiktokPublisher) Publish(ctx context.Context, acc Account, content string, media []string) (*Result, error) {
	if len(media) == 0 {
		return nil, apperr.InvalidInput("media", "tiktok requires a video or at least one image url")
	}
	if err := validateMediaURLs(media); err != nil {
		return nil, err
	}

	videos := 0
	for _, m := range media {
		if isVideo(m) {
			videos++
		}
	}
	if videos > 0 && len(media) > 1 {
		return nil, apperr.InvalidInput("media", "tiktok accepts a single video or a set of images")
	}

	token, err := accessToken(ProviderTiktok, acc)
	if err != nil {
		return nil, err
	}

	var (
		endpoint string
		payload  any
	)
	if videos == 1 {
		endpoint = s.apiURL + "/v2/post/publish/video/init/"
		payload = transfer.VideoUploadRequest{
			PostInfo: transfer.VideoPostInfo{
				Title:                 truncateRunes(content, tiktokTitleLimit),
				PrivacyLevel:          "PUBLIC_TO_EVERYONE",
				VideoCoverTimestampMs: 1000,
			},
			SourceInfo: transfer.VideoSourceInfo{
				Source:   "PULL_FROM_URL",
				VideoURL: media[0],
			},
		}
	} else {
		endpoint = s.apiURL + "/v2/post/publish/content/init/"
		payload = transfer.PhotoUploadRequest{
			PostInfo: transfer.PhotoPostInfo{
				Title:        truncateRunes(content, tiktokTitleLimit),
				Description:  content,
				PrivacyLevel: "PUBLIC_TO_EVERYONE",
				AutoAddMusic: true,
			},
			SourceInfo: transfer.PhotoSourceInfo{
				Source:          "PULL_FROM_URL",
				PhotoCoverIndex: 0,
				PhotoImages:     media,
			},
			PostMode:  "DIRECT_POST",
			MediaType: "PHOTO",
		}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	var result transfer.TikTokUploadResponse
	raw, err := doJSON(ctx, s.client, http.MethodPost, endpoint, header, payload, &result)
	if err != nil {
		slog.Info(err.Error(), "provider", ProviderTiktok)
		return nil, &apperr.PublishError{Provider: ProviderTiktok, Cause: err}
	}
	if result.Error.Code != "" && result.Error.Code != "ok" {
		return nil, apperr.Publish(ProviderTiktok, "%s: %s (log id %s)", result.Error.Code, result.Error.Message, result.Error.LogID)
	}
	if result.Data.PublishID == "" {
		return nil, apperr.Publish(ProviderTiktok, "no publish id returned")
	}

	return &Result{PlatformPostID: result.Data.PublishID, Raw: raw}, nil
}

func (s *tiktokPublisher) Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil || cred.RefreshToken == "" {
		return nil, apperr.Publish(ProviderTiktok, "credential has no refresh token")
	}

	data := url.Values{}
	data.Set("client_key", s.clientKey)
	data.Set("client_secret", s.clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", cred.RefreshToken)

	var token transfer.TiktokTokenResponse
	if _, err := doForm(ctx, s.client, s.apiURL+"/v2/oauth/token/", data, &token); err != nil {
		return nil, &apperr.PublishError{Provider: ProviderTiktok, Cause: err}
	}
	if token.Error != "" {
		return nil, apperr.Publish(ProviderTiktok, "refresh failed: %s: %s", token.Error, token.ErrorDescription)
	}
	if token.AccessToken == "" {
		return nil, apperr.Publish(ProviderTiktok, "refresh returned no access token")
	}

	refreshed := *cred
	refreshed.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if token.TokenType != "" {
		refreshed.TokenType = token.TokenType
	}
	refreshed.Expiry = s.now().Add(time.Duration(token.ExpiresIn) * time.Second).UTC()
	return &refreshed, nil
}

func (s *tiktokPublisher) Revoke(ctx context.Context, acc Account) error {
	token, err := accessToken(ProviderTiktok, acc)
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("client_key", s.clientKey)
	data.Set("client_secret", s.clientSecret)
	data.Set("token", token)

	if _, err := doForm(ctx, s.client, s.apiURL+"/v2/oauth/revoke/", data, nil); err != nil {
		return &apperr.PublishError{Provider: ProviderTiktok, Cause: fmt.Errorf("revoke: %w", err)}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
