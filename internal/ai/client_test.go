package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailgen-labs/emailgen-api/pkg/config"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, chatCompletionPath, r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		resp := map[string]interface{}{
			"id":    "chatcmpl-1",
			"model": req.Model,
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string) *Client {
	return NewClient(config.AIConfig{
		BaseURL:        url,
		APIKey:         "test-key",
		VisionModel:    "vision-model",
		AssistantModel: "assistant-model",
		RequestTimeout: 5 * time.Second,
	})
}

func TestConvertDesignStripsCodeFences(t *testing.T) {
	srv := chatServer(t, "```html\n<table>unsubscribe</table>\n```")
	defer srv.Close()

	client := newTestClient(srv.URL)
	html, err := client.ConvertDesign(context.Background(), []byte{0x89, 0x50}, "image/png", "")
	require.NoError(t, err)
	assert.Equal(t, "<table>unsubscribe</table>", html)
}

func TestSuggestEditParsesPayload(t *testing.T) {
	payload := `{"description":"add row","originalCode":"<tr>a</tr>","newCode":"<tr>a</tr>\n<tr>b</tr>","startLine":2,"endLine":2,"startCol":null,"endCol":null}`
	srv := chatServer(t, payload)
	defer srv.Close()

	client := newTestClient(srv.URL)
	suggestion, err := client.SuggestEdit(context.Background(), "<tr>a</tr>", "add a row")
	require.NoError(t, err)
	assert.Equal(t, "add row", suggestion.Description)
	assert.Equal(t, 2, suggestion.StartLine)
	assert.Nil(t, suggestion.StartCol)
}

func TestSuggestEditRejectsMalformedPayload(t *testing.T) {
	srv := chatServer(t, `{"description":"missing fields"}`)
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SuggestEdit(context.Background(), "<p>x</p>", "do something")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedSuggestion)
}

func TestDoChatPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ConvertDesign(context.Background(), []byte{0x01}, "image/png", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestParseSuggestionValidation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown field", `{"description":"d","originalCode":"a","newCode":"b","startLine":1,"endLine":1,"bogus":true}`},
		{"zero start line", `{"description":"d","originalCode":"a","newCode":"b","startLine":0,"endLine":1}`},
		{"inverted range", `{"description":"d","originalCode":"a","newCode":"b","startLine":3,"endLine":1}`},
		{"lonely startCol", `{"description":"d","originalCode":"a","newCode":"b","startLine":1,"endLine":1,"startCol":2}`},
		{"not json", `add a <p> tag please`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSuggestion([]byte(tc.raw))
			assert.ErrorIs(t, err, ErrMalformedSuggestion)
		})
	}
}
