// Package client talks to the HTTP API of a relay worker.
package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tmdnlcl/relay-worker/api/types"
)

// Client represents a client to interact with the relay worker.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	options    *Options
}

// APIError is a non-2xx answer of the worker.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new Client instance.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	options, err := NewOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create options: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if options.ignoreTLSCert {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/") + options.BasePath,
		HTTPClient: &http.Client{Timeout: options.Timeout, Transport: transport},
		options:    options,
	}, nil
}

// Register enrolls an account or refreshes its tokens.
func (c *Client) Register(id int64, token, secret string) (types.Account, error) {
	var account types.Account
	err := c.do(http.MethodPost, "/accounts", types.RegisterRequest{ID: id, Token: token, TokenSecret: secret}, &account)
	return account, err
}

func (c *Client) SetMode(id int64, mode types.Mode) (types.Account, error) {
	var account types.Account
	err := c.do(http.MethodPut, fmt.Sprintf("/accounts/%d/mode", id), types.ModeRequest{Mode: mode.String()}, &account)
	return account, err
}

// ListTweets returns the archived tweets of an account, newest first.
func (c *Client) ListTweets(id int64) ([]types.Tweet, error) {
	var tweets []types.Tweet
	err := c.do(http.MethodGet, fmt.Sprintf("/accounts/%d/tweets", id), nil, &tweets)
	return tweets, err
}

// PostTweet publishes an archived tweet. A nil content keeps the stored text.
func (c *Client) PostTweet(id, tweetID int64, content *string) (int64, error) {
	var resp types.PostResponse
	err := c.do(http.MethodPost, fmt.Sprintf("/accounts/%d/tweets/%d/post", id, tweetID), types.PostRequest{Content: content}, &resp)
	return resp.StatusID, err
}

func (c *Client) DeleteTweet(id, tweetID int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/accounts/%d/tweets/%d", id, tweetID), nil, nil)
}

func (c *Client) Stats() (types.StatsResponse, error) {
	var resp types.StatsResponse
	err := c.do(http.MethodGet, "/stats", nil, &resp)
	return resp, err
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating %s request: %w", method, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}
	if c.options.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.options.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending %s request: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var respErr types.APIError
		if json.Unmarshal(data, &respErr) == nil && respErr.Error != "" {
			apiErr.Message = respErr.Error
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}
