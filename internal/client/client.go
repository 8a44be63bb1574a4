// Package client talks to the ourdates HTTP API. Client satisfies the
// livesync Fetcher and Feed interfaces, so a Synchronizer can mirror a
// couple's dates from a remote server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ourdates/internal/dates"
)

var ErrSetupRequired = errors.New("setup required")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Me is the caller's profile. CoupleID is nil until setup is done.
type Me struct {
	UserID      uint64  `json:"user_id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	CoupleID    *string `json:"couple_id"`
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var out Me
	err := c.getJSON(ctx, "/me", nil, &out)
	return out, err
}

// FetchDates loads a snapshot. The server scopes it to the token's couple;
// coupleID only guards against a token that belongs elsewhere.
func (c *Client) FetchDates(ctx context.Context, coupleID string, view dates.View) ([]dates.Entry, error) {
	q := url.Values{}
	if view != "" {
		q.Set("view", string(view))
	}

	var out []dates.Entry
	if err := c.getJSON(ctx, "/dates", q, &out); err != nil {
		return nil, err
	}
	for _, e := range out {
		if e.CoupleID != coupleID {
			return nil, fmt.Errorf("fetch dates: entry %s belongs to couple %s, want %s", e.ID, e.CoupleID, coupleID)
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: msg}
	if resp.StatusCode == http.StatusConflict && msg == ErrSetupRequired.Error() {
		return fmt.Errorf("%w: %w", ErrSetupRequired, apiErr)
	}
	return apiErr
}
