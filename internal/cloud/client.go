// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/model"
)

// Configuration constants for OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultSiteURL is sent as HTTP-Referer for OpenRouter attribution.
	DefaultSiteURL = "https://github.com/jeranaias/rigchat"

	// DefaultSiteName is sent as X-Title.
	DefaultSiteName = "rigchat"

	// DefaultTimeout bounds the wait for response headers. The body of a
	// streaming response is bounded only by the caller's context.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed non-streaming response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// No client timeout: streaming responses are context-controlled.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one entry of the request's messages array.
type ChatMessage struct {
	Role    string `json:"role"`    // "user", "assistant", or "system"
	Content string `json:"content"` // The message content
}

// ChatRequest is the body of a chat completions request.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// BuildMessages returns the request messages: the system prompt first, then
// the history in order. The system prompt is always sent, even when empty.
func BuildMessages(systemPrompt string, history []model.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(history)+1)
	system := model.NewSystemMessage(systemPrompt)
	out = append(out, ChatMessage{Role: string(system.Role), Content: system.Content})
	for _, m := range history {
		out = append(out, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// Pricing is a model's per-token price, as decimal strings.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// modelsResponse is the response structure for listing models.
type modelsResponse struct {
	Data []struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		ContextLength int      `json:"context_length"`
		Pricing       *Pricing `json:"pricing"`
	} `json:"data"`
}

// apiErrorResponse is the error body OpenRouter returns. Code is a number
// on some routes and a string on others.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client sends completion requests to OpenRouter. It holds no credential;
// the key travels with each request's settings. Safe for concurrent use.
type Client struct {
	baseURL    string
	siteURL    string
	siteName   string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client

	requests atomic.Int64
}

// NewClient creates a client with OpenRouter defaults.
func NewClient() *Client {
	return &Client{
		baseURL:    DefaultOpenRouterURL,
		siteURL:    DefaultSiteURL,
		siteName:   DefaultSiteName,
		userAgent:  "rigchat",
		timeout:    DefaultTimeout,
		httpClient: sharedHTTPClient,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	if url = strings.TrimSpace(url); url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithSiteURL sets the HTTP-Referer attribution header.
func (c *Client) WithSiteURL(url string) *Client {
	c.siteURL = url
	return c
}

// WithSiteName sets the X-Title attribution header.
func (c *Client) WithSiteName(name string) *Client {
	c.siteName = name
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// WithTimeout sets how long to wait for response headers. Zero disables it.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// SendConversation starts a streaming completion for history under the
// given settings. On success the caller owns the returned Stream and must
// Close it. Failures before the body starts are an *APIError, a
// *NetworkError, or ErrMissingCredential; nothing is retried.
func (c *Client) SendConversation(ctx context.Context, settings model.Settings, history []model.Message) (*Stream, error) {
	if !settings.HasCredential() {
		return nil, ErrMissingCredential
	}
	log := logging.For("cloud")

	reqBody := ChatRequest{
		Model:    settings.EffectiveModel(),
		Messages: BuildMessages(settings.SystemPrompt, history),
		Stream:   true,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// The stream owns reqCtx; Close cancels it.
	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, strings.TrimSpace(settings.APIKey))
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// CLOUD: Secure logging - key fingerprint only, never the key or body
	log.Info("completion request",
		"model", reqBody.Model,
		"messages", len(reqBody.Messages),
		"key", keyFingerprint(settings.APIKey),
		"seq", c.requests.Add(1))

	var timedOut atomic.Bool
	var timer *time.Timer
	if c.timeout > 0 {
		timer = time.AfterFunc(c.timeout, func() {
			timedOut.Store(true)
			cancel()
		})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if timer != nil && !timer.Stop() && err == nil {
		// Headers arrived as the timer fired; the context is already gone.
		resp.Body.Close()
		err = context.DeadlineExceeded
	}
	if err != nil {
		cancel()
		if timedOut.Load() {
			err = fmt.Errorf("no response within %s: %w", c.timeout, err)
		}
		log.Warn("completion request failed", "err", err)
		return nil, &NetworkError{Op: "send request", Err: err}
	}
	log.Debug("completion response", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		body, _ := readResponse(resp)
		apiErr := handleErrorResponse(resp.StatusCode, body)
		log.Warn("completion rejected", "status", apiErr.Status, "code", apiErr.Code, "message", apiErr.Message)
		return nil, apiErr
	}

	return newStream(resp.Body, cancel), nil
}

// ListModels retrieves the models OpenRouter currently offers. The endpoint
// does not require a key.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "list models", Err: err}
	}
	defer resp.Body.Close()

	// SECURITY: Read response with size limit to prevent memory exhaustion
	body, err := readResponse(resp)
	if err != nil {
		return nil, &NetworkError{Op: "list models", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]model.ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		info := model.ModelInfo{
			ID:            m.ID,
			Name:          m.Name,
			ContextLength: m.ContextLength,
			Description:   firstLine(m.Description),
		}
		if m.Pricing != nil {
			info.Free = isZeroPrice(m.Pricing.Prompt) && isZeroPrice(m.Pricing.Completion)
		}
		models = append(models, info)
	}
	return models, nil
}

func (c *Client) listTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return DefaultTimeout
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// readResponse reads a body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-2xx response to an *APIError, using
// the server's message when the body carries one.
func handleErrorResponse(statusCode int, body []byte) *APIError {
	apiErr := &APIError{Status: statusCode}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Code = strings.Trim(string(parsed.Error.Code), `"`)
		return apiErr
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		apiErr.Message = text
	}
	return apiErr
}

// keyFingerprint returns a short SHA-256 prefix identifying a key in logs.
// SECURITY: Never log any part of the key itself.
func keyFingerprint(apiKey string) string {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:4])
}

func isZeroPrice(p string) bool {
	p = strings.TrimSpace(p)
	return p == "0" || p == "0.0" || p == ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
