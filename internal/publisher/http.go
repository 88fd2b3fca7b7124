package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

const maxErrorBody = 512

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

// redactURL drops the query string from a transport error. Some platform
// endpoints take the access token as a query parameter and *url.Error
// prints the full request URL.
func redactURL(err error) error {
	var ue *neturl.Error
	if !errors.As(err, &ue) {
		return err
	}
	if u, perr := neturl.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		ue.URL = u.String()
	} else {
		ue.URL = "[redacted]"
	}
	return err
}

// statusError carries a non-2xx platform response.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// doJSON sends body (JSON-encoded when not nil) and decodes a 2xx response
// into out. The raw response body is returned for the history record.
func doJSON(ctx context.Context, client *http.Client, method, url string, header http.Header, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshalling payload: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", redactURL(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return respBody, &statusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return respBody, fmt.Errorf("error parsing response: %w", err)
		}
	}
	return respBody, nil
}

// doForm posts url-encoded values and decodes the JSON response into out.
func doForm(ctx context.Context, client *http.Client, url string, values neturl.Values, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", redactURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return body, &statusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return body, fmt.Errorf("error parsing response: %w", err)
		}
	}
	return body, nil
}
