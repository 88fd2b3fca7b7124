// Package publisher routes a post to the platform that delivers it.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

const (
	ProviderInstagram = "instagram"
	ProviderYoutube   = "youtube"
	ProviderTiktok    = "tiktok"
)

// Account is what an adapter needs to act for a connected account. The
// credential is plaintext and must not outlive the call.
type Account struct {
	ID             int64
	UserID         int64
	ProviderUserID string
	Credential     *models.Credential
}

type Result struct {
	PlatformPostID string
	Raw            json.RawMessage
}

// Publisher delivers content to one platform. A multi-step platform
// protocol either completes or returns an error; callers never see a
// partially published post reported as success.
type Publisher interface {
	Provider() string
	Publish(ctx context.Context, acc Account, content string, media []string) (*Result, error)
}

// Refresher is implemented by publishers whose credentials can be renewed
// without the user.
type Refresher interface {
	Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error)
}

// Revoker is implemented by publishers that can invalidate a credential on
// the platform side.
type Revoker interface {
	Revoke(ctx context.Context, acc Account) error
}

type Registry struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
}

func NewRegistry(publishers ...Publisher) (*Registry, error) {
	r := &Registry{publishers: make(map[string]Publisher)}
	for _, p := range publishers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Publisher) error {
	name := normalize(p.Provider())
	if name == "" {
		return fmt.Errorf("publisher has no provider name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.publishers[name]; ok {
		return fmt.Errorf("publisher %q already registered", name)
	}
	r.publishers[name] = p
	return nil
}

// Get returns the adapter for provider or an UnsupportedProviderError.
func (r *Registry) Get(provider string) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.publishers[normalize(provider)]
	if !ok {
		return nil, &apperr.UnsupportedProviderError{Provider: provider}
	}
	return p, nil
}

// Require fails when any of the named providers has no adapter.
func (r *Registry) Require(providers ...string) error {
	var missing []string
	for _, name := range providers {
		if _, err := r.Get(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no publisher registered for: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func validateMediaURLs(media []string) error {
	for i, m := range media {
		u, err := url.Parse(m)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.InvalidInput("media", "media[%d] is not an http(s) url", i)
		}
	}
	return nil
}

func accessToken(provider string, acc Account) (string, error) {
	if acc.Credential == nil || acc.Credential.AccessToken == "" {
		return "", apperr.Publish(provider, "credential has no access token")
	}
	return acc.Credential.AccessToken, nil
}

var videoExtensions = []string{".mp4", ".mov", ".m4v", ".webm"}

func isVideo(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
