package client

// http_client.go talks to the admin API of a running mangabot.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tyburd/mangabot/internal/api"
)

// HTTPClient is a small client for the /auth and /api routes
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// APIError is a non-2xx answer of the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.StatusCode, e.Message)
}

func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			// a poll can take a while
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Login exchanges the admin key for an access token
func (c *HTTPClient) Login(adminKey string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.do(http.MethodPost, "/auth/token", api.TokenRequest{AdminKey: adminKey}, &resp); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) Subscribe(req api.SubscribeRequest) (*api.SubscribeResponse, error) {
	var resp api.SubscribeResponse
	if err := c.do(http.MethodPost, "/api/subscriptions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Unsubscribe(req api.UnsubscribeRequest) error {
	return c.do(http.MethodDelete, "/api/subscriptions", req, nil)
}

func (c *HTTPClient) Subscriptions(chatID string) ([]api.SubscriptionResponse, error) {
	path := "/api/subscriptions"
	if chatID != "" {
		path += "?chat_id=" + url.QueryEscape(chatID)
	}
	var resp struct {
		Subscriptions []api.SubscriptionResponse `json:"subscriptions"`
	}
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

// Search runs a search on the server, which also lets it remember the results
func (c *HTTPClient) Search(clientName, query string, page int) ([]api.CardResponse, error) {
	path := fmt.Sprintf("/api/clients/%s/search?q=%s&page=%d", url.PathEscape(clientName), url.QueryEscape(query), page)
	var resp struct {
		Results []api.CardResponse `json:"results"`
	}
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *HTTPClient) UpdateLastChapter(req api.LastChapterRequest) (*api.LastChapterResponse, error) {
	var resp api.LastChapterResponse
	if err := c.do(http.MethodPost, "/api/last-chapter", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Poll() (*api.PollResponse, error) {
	var resp api.PollResponse
	if err := c.do(http.MethodPost, "/api/poll", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
