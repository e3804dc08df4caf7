package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature float32 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiCall struct {
	path    string
	key     string
	request geminiRequest
}

func newGeminiServer(t *testing.T, body string, calls *[]geminiCall) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}

		call := geminiCall{path: r.URL.Path, key: r.Header.Get("x-goog-api-key")}
		_ = json.NewDecoder(r.Body).Decode(&call.request)
		*calls = append(*calls, call)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	t.Cleanup(server.Close)

	return server
}

func TestGeminiClient_Complete(t *testing.T) {
	var calls []geminiCall

	server := newGeminiServer(t, `{
		"candidates": [{
			"content": {
				"role": "model",
				"parts": [
					{"text": "{\"original_code\": \"a;\", "},
					{"text": "\"mutated_code\": \"b;\"}"}
				]
			},
			"finishReason": "STOP"
		}]
	}`, &calls)

	client := NewGeminiClient("gemini-2.5-flash", server.URL, 0.2, NewKeyPool([]string{"g-key"}, 0))
	assert.Equal(t, "gemini:gemini-2.5-flash", client.Name())

	out, err := client.Complete(context.Background(), "mutate this")
	require.NoError(t, err)
	assert.Equal(t, `{"original_code": "a;", "mutated_code": "b;"}`, out)

	require.Len(t, calls, 1)
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", calls[0].path)
	assert.Equal(t, "g-key", calls[0].key)
	require.Len(t, calls[0].request.Contents, 1)
	assert.Equal(t, "user", calls[0].request.Contents[0].Role)
	require.Len(t, calls[0].request.Contents[0].Parts, 1)
	assert.Equal(t, "mutate this", calls[0].request.Contents[0].Parts[0].Text)
	assert.InDelta(t, 0.2, calls[0].request.GenerationConfig.Temperature, 0.0001)
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	var calls []geminiCall

	server := newGeminiServer(t, `{"candidates": []}`, &calls)
	client := NewGeminiClient("gemini-2.5-flash", server.URL, 0, NewKeyPool([]string{"g-key"}, 0))

	_, err := client.Complete(context.Background(), "mutate this")
	require.ErrorIs(t, err, ErrEmptyCompletion)
	assert.Len(t, calls, 1)
}

func TestGeminiClient_OneClientPerKey(t *testing.T) {
	var calls []geminiCall

	server := newGeminiServer(t, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "ok"}]}}]}`, &calls)
	client := NewGeminiClient("gemini-2.5-flash", server.URL, 0, NewKeyPool([]string{"first", "second"}, 1))

	for range 2 {
		out, err := client.Complete(context.Background(), "mutate this")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}

	require.Len(t, calls, 2)
	assert.ElementsMatch(t, []string{"first", "second"}, []string{calls[0].key, calls[1].key})
	assert.Len(t, client.clients, 2)
}
