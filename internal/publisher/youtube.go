package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

const (
	defaultGoogleRevokeURL = "https://oauth2.googleapis.com/revoke"
	youtubeTitleLimit      = 80
)

type YoutubeOptions struct {
	ClientID     string
	ClientSecret string
	// Endpoint overrides the YouTube Data API base url.
	Endpoint   string
	TokenURL   string
	RevokeURL  string
	HTTPClient *http.Client
}

type youtubePublisher struct {
	oauth     *oauth2.Config
	endpoint  string
	revokeURL string
	client    *http.Client
}

func NewYoutube(opts YoutubeOptions) Publisher {
	endpoint := google.Endpoint
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}
	revokeURL := opts.RevokeURL
	if revokeURL == "" {
		revokeURL = defaultGoogleRevokeURL
	}
	return &youtubePublisher{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Scopes:       []string{youtube.YoutubeUploadScope},
			Endpoint:     endpoint,
		},
		endpoint:  opts.Endpoint,
		revokeURL: revokeURL,
		client:    defaultHTTPClient(opts.HTTPClient),
	}
}

func (s *youtubePublisher) Provider() string { return ProviderYoutube }

// Publish downloads the single video url to a temp file and uploads it.
// The title is the first 80 characters of content; the description is all
// of it.
func (s *youtubePublisher) Publish(ctx context.Context, acc Account, content string, media []string) (*Result, error) {
	if len(media) != 1 {
		return nil, apperr.InvalidInput("media", "youtube requires exactly one video url")
	}
	if err := validateMediaURLs(media); err != nil {
		return nil, err
	}
	if _, err := accessToken(ProviderYoutube, acc); err != nil {
		return nil, err
	}

	service, err := s.service(ctx, acc.Credential)
	if err != nil {
		return nil, &apperr.PublishError{Provider: ProviderYoutube, Cause: err}
	}

	tempFile, err := s.download(ctx, media[0])
	if err != nil {
		return nil, &apperr.PublishError{Provider: ProviderYoutube, Cause: err}
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return nil, &apperr.PublishError{Provider: ProviderYoutube, Cause: fmt.Errorf("error opening video file: %w", err)}
	}
	defer file.Close()

	title := truncateRunes(content, youtubeTitleLimit)
	if title == "" {
		title = "Untitled"
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: content,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	uploaded, err := service.Videos.Insert([]string{"snippet", "status"}, video).Media(file).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error(), "provider", ProviderYoutube)
		return nil, &apperr.PublishError{Provider: ProviderYoutube, Cause: fmt.Errorf("error uploading video: %w", err)}
	}
	if uploaded.Id == "" {
		return nil, apperr.Publish(ProviderYoutube, "upload returned no video id")
	}

	return &Result{PlatformPostID: uploaded.Id, Raw: uploadRecord(uploaded)}, nil
}

// uploadRecord is the history payload for an uploaded video. It falls back
// to the bare id when the API response cannot be re-encoded.
func uploadRecord(video *youtube.Video) json.RawMessage {
	raw, err := json.Marshal(video)
	if err != nil {
		slog.Warn("unable to encode youtube upload response", "video_id", video.Id, "error", err)
		raw, _ = json.Marshal(map[string]string{"id": video.Id})
	}
	return raw
}

// service builds a client that refreshes the access token on its own when
// the credential carries a refresh token.
func (s *youtubePublisher) service(ctx context.Context, cred *models.Credential) (*youtube.Service, error) {
	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.Expiry,
	}

	var httpClient *http.Client
	if token.RefreshToken != "" {
		httpClient = s.oauth.Client(context.WithValue(ctx, oauth2.HTTPClient, s.client), token)
	} else {
		httpClient = &http.Client{
			Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(token), Base: s.client.Transport},
			Timeout:   s.client.Timeout,
		}
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return youtube.NewService(ctx, opts...)
}

func (s *youtubePublisher) download(ctx context.Context, videoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating download request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected download status: %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("error saving video to temporary file: %w", err)
	}
	return tempFile.Name(), nil
}

func (s *youtubePublisher) Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil || cred.RefreshToken == "" {
		return nil, apperr.Publish(ProviderYoutube, "credential has no refresh token")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		slog.Info(err.Error(), "provider", ProviderYoutube)
		return nil, &apperr.PublishError{Provider: ProviderYoutube, Cause: err}
	}

	refreshed := *cred
	refreshed.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	refreshed.TokenType = token.TokenType
	refreshed.Expiry = token.Expiry.UTC()
	return &refreshed, nil
}

// Revoke invalidates the grant; revoking the refresh token also revokes
// every access token issued from it.
func (s *youtubePublisher) Revoke(ctx context.Context, acc Account) error {
	if acc.Credential == nil {
		return apperr.Publish(ProviderYoutube, "credential is missing")
	}
	token := acc.Credential.RefreshToken
	if token == "" {
		token = acc.Credential.AccessToken
	}
	if token == "" {
		return apperr.Publish(ProviderYoutube, "credential has no token to revoke")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.revokeURL,
		strings.NewReader(url.Values{"token": {token}}.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return &apperr.PublishError{Provider: ProviderYoutube, Cause: redactURL(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.Publish(ProviderYoutube, "failed to revoke token, status code: %d", resp.StatusCode)
	}
	return nil
}
