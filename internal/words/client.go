// internal/words/client.go
//
// Remote word source for the game session.
//
// Responsibilities:
//   - Define the Source contract consumed by the game package.
//   - Fetch a random word of a given length from the random-word API.
//   - Classify failures as ErrNetwork or ErrParse so callers can retry.
//
// Wire format:
//   GET {base}/word?length=N  →  ["word"]
//   Element 0 of the JSON array is the word; it is returned lowercased.

package words

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public random-word API.
const DefaultBaseURL = "https://random-word-api.herokuapp.com"

// maxBody caps how much of a response is read.
const maxBody = 64 << 10

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("words: network error")
	// ErrParse means the response was not a non-empty JSON list of strings.
	ErrParse = errors.New("words: malformed response")
)

// Source fetches a word of the requested length.
// Implementations may block; callers run them off the session lock.
type Source interface {
	FetchWord(ctx context.Context, length int) (string, error)
}

// Client is an HTTP Source backed by the random-word API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client. An empty baseURL selects DefaultBaseURL;
// a non-positive timeout leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := &http.Client{}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// FetchWord requests one word of the given length.
func (c *Client) FetchWord(ctx context.Context, length int) (string, error) {
	u, err := url.Parse(c.baseURL + "/word")
	if err != nil {
		return "", fmt.Errorf("%w: bad base url: %v", ErrNetwork, err)
	}
	q := u.Query()
	q.Set("length", strconv.Itoa(length))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return parseWord(body)
}

// parseWord decodes the API payload and returns its first element.
func parseWord(body []byte) (string, error) {
	var list []string
	if err := json.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(list) == 0 {
		return "", fmt.Errorf("%w: empty list", ErrParse)
	}
	w := strings.ToLower(strings.TrimSpace(list[0]))
	if w == "" {
		return "", fmt.Errorf("%w: empty word", ErrParse)
	}
	return w, nil
}
