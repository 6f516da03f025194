// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

func testSettings() model.Settings {
	return model.Settings{
		APIKey:       "sk-or-test-key",
		Model:        "vendor/model-x",
		SystemPrompt: "Be helpful.",
	}
}

func collect(t *testing.T, s *Stream) string {
	t.Helper()
	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.Fragment())
	}
	require.NoError(t, s.Err())
	return sb.String()
}

// =============================================================================
// REQUEST SHAPE TESTS
// =============================================================================

func TestSendConversation_RequestShape(t *testing.T) {
	var gotBody ChatRequest
	var gotHeader http.Header
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody("ok"))
	}))
	defer server.Close()

	client := NewClient().WithBaseURL(server.URL + "/").WithSiteURL("https://example.test").WithSiteName("rigchat-test")
	history := []model.Message{
		model.NewUserMessage("Hi"),
		model.NewAssistantMessage("Hello"),
		model.NewUserMessage("Again"),
	}

	s, err := client.SendConversation(context.Background(), testSettings(), history)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "ok", collect(t, s))

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-or-test-key", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "https://example.test", gotHeader.Get("HTTP-Referer"))
	assert.Equal(t, "rigchat-test", gotHeader.Get("X-Title"))
	assert.Equal(t, "text/event-stream", gotHeader.Get("Accept"))

	assert.Equal(t, "vendor/model-x", gotBody.Model)
	assert.True(t, gotBody.Stream)
	require.Len(t, gotBody.Messages, 4)
	assert.Equal(t, ChatMessage{Role: "system", Content: "Be helpful."}, gotBody.Messages[0])
	assert.Equal(t, ChatMessage{Role: "user", Content: "Hi"}, gotBody.Messages[1])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "Hello"}, gotBody.Messages[2])
	assert.Equal(t, ChatMessage{Role: "user", Content: "Again"}, gotBody.Messages[3])
}

func TestSendConversation_DefaultModel(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ChatRequest
		json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		io.WriteString(w, sseBody())
	}))
	defer server.Close()

	settings := testSettings()
	settings.Model = ""
	s, err := NewClient().WithBaseURL(server.URL).SendConversation(context.Background(), settings, nil)
	require.NoError(t, err)
	collect(t, s)

	assert.Equal(t, model.DefaultModel, gotModel)
}

func TestSendConversation_MissingCredential(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	settings := testSettings()
	settings.APIKey = "   "
	_, err := NewClient().WithBaseURL(server.URL).SendConversation(context.Background(), settings, nil)

	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Zero(t, hits.Load())
}

func TestBuildMessages_EmptySystemPromptStillSent(t *testing.T) {
	msgs := BuildMessages("", []model.Message{model.NewUserMessage("q")})

	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "", msgs[0].Content)
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestSendConversation_StreamsIncrementally(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, sseEvent("first"))
		flusher.Flush()
		<-release
		io.WriteString(w, sseEvent(" second"))
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	s, err := NewClient().WithBaseURL(server.URL).SendConversation(context.Background(), testSettings(), nil)
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Next())
	assert.Equal(t, "first", s.Fragment())
	close(release)
	require.True(t, s.Next())
	assert.Equal(t, " second", s.Fragment())
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}

func TestSendConversation_ContextCancelMidStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sseEvent("partial"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s, err := NewClient().WithBaseURL(server.URL).SendConversation(ctx, testSettings(), nil)
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Next())
	cancel()
	assert.False(t, s.Next())
	var netErr *NetworkError
	assert.True(t, errors.As(s.Err(), &netErr), "got %v", s.Err())
}

func TestSendConversation_HeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient().WithBaseURL(server.URL).WithTimeout(50 * time.Millisecond)
	_, err := client.SendConversation(context.Background(), testSettings(), nil)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestSendConversation_APIErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
		code     string
	}{
		{"unauthorized numeric code", 401, `{"error":{"code":401,"message":"No auth credentials found"}}`, ErrAuthFailed, "No auth credentials found", "401"},
		{"credits", 402, `{"error":{"code":402,"message":"Insufficient credits"}}`, ErrInsufficientCredits, "Insufficient credits", "402"},
		{"model", 404, `{"error":{"code":"model_not_found","message":"No such model"}}`, ErrModelNotFound, "No such model", "model_not_found"},
		{"rate limit", 429, `{"error":{"message":"Slow down"}}`, ErrRateLimited, "Slow down", ""},
		{"plain body", 500, `upstream exploded`, nil, "upstream exploded", ""},
		{"html body", 502, `<html>bad gateway</html>`, nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient().WithBaseURL(server.URL).SendConversation(context.Background(), testSettings(), nil)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %T %v", err, err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.code, apiErr.Code)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.NotEmpty(t, apiErr.Error())
		})
	}
}

func TestSendConversation_NoRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient().WithBaseURL(server.URL).SendConversation(context.Background(), testSettings(), nil)

	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSendConversation_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient().WithBaseURL(url).SendConversation(context.Background(), testSettings(), nil)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr), "got %v", err)
}

// =============================================================================
// MODEL LISTING TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"data":[
			{"id":"a/free:free","name":"Free A","context_length":32768,"description":"line one\nline two","pricing":{"prompt":"0","completion":"0"}},
			{"id":"b/paid","name":"Paid B","context_length":128000,"pricing":{"prompt":"0.000003","completion":"0.000015"}}
		]}`)
	}))
	defer server.Close()

	models, err := NewClient().WithBaseURL(server.URL).ListModels(context.Background())

	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "a/free:free", models[0].ID)
	assert.True(t, models[0].Free)
	assert.Equal(t, "line one", models[0].Description)
	assert.False(t, models[1].Free)
	assert.Equal(t, 128000, models[1].ContextLength)
}

func TestKeyFingerprint(t *testing.T) {
	assert.Equal(t, "none", keyFingerprint(""))
	fp := keyFingerprint("sk-or-secret")
	assert.Len(t, fp, 8)
	assert.NotContains(t, fp, "secret")
	assert.Equal(t, fp, keyFingerprint(" sk-or-secret "))
}
