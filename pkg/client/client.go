package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nkkko/pushreg/pkg/proto"
)

// Client is an HTTP client for interacting with the pushreg API
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeaders sets additional HTTP headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// New creates a new pushreg API client
func New(baseURL string, options ...ClientOption) *Client {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		headers:    headers,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d) %s: %s", e.StatusCode, e.Code, e.Message)
}

// CreateSubscription registers a new push subscription for owner
func (c *Client) CreateSubscription(ctx context.Context, owner string, req *proto.CreateSubscriptionRequest) (*proto.Subscription, error) {
	var sub proto.Subscription
	if err := c.do(ctx, http.MethodPost, subscriptionsPath(owner), nil, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptions returns the owner's live subscriptions
func (c *Client) ListSubscriptions(ctx context.Context, owner string) ([]proto.Subscription, error) {
	var subs []proto.Subscription
	if err := c.do(ctx, http.MethodGet, subscriptionsPath(owner), nil, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// GetSubscriptions returns the owner's live subscriptions among ids
func (c *Client) GetSubscriptions(ctx context.Context, owner string, ids ...string) ([]proto.Subscription, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	var subs []proto.Subscription
	if err := c.do(ctx, http.MethodGet, subscriptionsPath(owner), query, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// UpdateSubscription changes the expiry and/or types of a subscription
func (c *Client) UpdateSubscription(ctx context.Context, owner, id string, req *proto.UpdateSubscriptionRequest) (*proto.UpdateSubscriptionResponse, error) {
	var result proto.UpdateSubscriptionResponse
	if err := c.do(ctx, http.MethodPatch, subscriptionPath(owner, id), nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RevokeSubscription revokes one subscription
func (c *Client) RevokeSubscription(ctx context.Context, owner, id string) error {
	return c.do(ctx, http.MethodDelete, subscriptionPath(owner, id), nil, nil, nil)
}

// RevokeAllSubscriptions revokes every subscription of owner
func (c *Client) RevokeAllSubscriptions(ctx context.Context, owner string) error {
	return c.do(ctx, http.MethodDelete, subscriptionsPath(owner), nil, nil, nil)
}

// DeleteOwner runs the server's account cleanup steps for owner
func (c *Client) DeleteOwner(ctx context.Context, owner string) (*proto.DeleteOwnerResponse, error) {
	var result proto.DeleteOwnerResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/owners/"+url.PathEscape(owner), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func subscriptionsPath(owner string) string {
	return "/v1/owners/" + url.PathEscape(owner) + "/subscriptions"
}

func subscriptionPath(owner, id string) string {
	return subscriptionsPath(owner) + "/" + url.PathEscape(id)
}

// do sends a request and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env proto.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: env.RequestID}
		if env.Error != nil {
			apiErr.Type = env.Error.Type
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
