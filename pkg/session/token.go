// Package session obtains room credentials from the token endpoint and
// dispatches agent jobs so the remote agent joins the room.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/davronbek/voiceboard/internal/httpc"
)

// TokenResponse carries the room credentials issued by the endpoint.
type TokenResponse struct {
	// Token is the bearer session token for the room connection.
	Token string `json:"token"`

	// URL is the websocket address of the assigned room server.
	URL string `json:"url"`
}

// DispatchRequest asks the backend to send an agent into a room.
type DispatchRequest struct {
	Room     string            `json:"room"`
	Agent    string            `json:"agent,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DispatchResponse identifies the created agent job.
type DispatchResponse struct {
	JobID string `json:"job_id"`
}

// TokenClient calls the token/dispatch endpoint. Authentication is either
// a static API key or OAuth2 client credentials; with neither, requests go
// out unauthenticated.
type TokenClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the token client.
type Option func(*TokenClient)

// WithAPIKey sets a static bearer key for the endpoint.
func WithAPIKey(key string) Option {
	return func(c *TokenClient) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *TokenClient) { c.httpClient = hc }
}

// WithClientCredentials switches the client to OAuth2 client-credentials
// authentication. Tokens are fetched and refreshed automatically.
func WithClientCredentials(clientID, clientSecret, tokenURL string) Option {
	return func(c *TokenClient) {
		cfg := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		c.httpClient = cfg.Client(context.Background())
	}
}

// NewTokenClient creates a client for the given endpoint base URL.
func NewTokenClient(baseURL string, opts ...Option) *TokenClient {
	c := &TokenClient{
		baseURL:    baseURL,
		httpClient: httpc.Client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchToken requests room credentials for the given room and identity.
func (c *TokenClient) FetchToken(ctx context.Context, room, identity string) (*TokenResponse, error) {
	if c.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	payload := map[string]string{"room": room, "identity": identity}
	var result TokenResponse
	if err := c.post(ctx, "/api/token", payload, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, ErrEmptyToken
	}
	return &result, nil
}

// Dispatch posts an agent job request so the agent joins the room.
func (c *TokenClient) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResponse, error) {
	if c.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	var result DispatchResponse
	if err := c.post(ctx, "/api/dispatch", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *TokenClient) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("session: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("session: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("session: decode response: %w", err)
	}
	return nil
}

// decodeAPIError extracts a structured error from a non-2xx response,
// falling back to the raw body when the shape is unknown.
func decodeAPIError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)

	var wire struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bodyBytes, &wire); err == nil {
		if wire.Error.Message != "" {
			return NewAPIError(resp.StatusCode, wire.Error.Code, wire.Error.Message)
		}
		if wire.Message != "" {
			return NewAPIError(resp.StatusCode, "", wire.Message)
		}
	}
	return NewAPIError(resp.StatusCode, "", string(bodyBytes))
}
