// Package practicum talks to the homework status API.
package practicum

import (
	"bytes"
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

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultTimeout  = 30 * time.Second

	maxBodyBytes    = 4 << 20
	maxSnippetBytes = 512
)

// TransportError covers everything that goes wrong before a usable
// HTTP status is in hand, plus unreadable success bodies.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Kind() string  { return "transport" }

// RemoteError is any non-200 response.
type RemoteError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("endpoint %s returned %s", e.URL, e.Status)
}
func (e *RemoteError) Kind() string { return "remote" }

type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client performs single, unretried status requests.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	now      func() time.Time
}

func New(cfg Config) (*Client, error) {
	ep := strings.TrimSpace(cfg.Endpoint)
	if ep == "" {
		ep = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(ep); err != nil {
		return nil, fmt.Errorf("practicum: invalid endpoint %q: %w", ep, err)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum: token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: ep,
		token:    cfg.Token,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}, nil
}

// Fetch asks for updates since fromDate (unix seconds; 0 means now) and
// returns the decoded JSON body. Numbers are kept as json.Number.
func (c *Client) Fetch(ctx context.Context, fromDate int64) (any, error) {
	if fromDate == 0 {
		fromDate = c.now().Unix()
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: err}
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(fromDate, 10))
	u.RawQuery = q.Encode()
	target := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{
			URL:        c.endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       snippet(body),
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: fmt.Errorf("decode json: %w", err)}
	}
	return v, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= maxSnippetBytes {
		return s
	}
	return s[:maxSnippetBytes] + "..."
}
