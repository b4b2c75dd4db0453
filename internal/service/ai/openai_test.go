package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openaiapi "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/wise-mentor/backend/internal/logger"
)

type completionServer struct {
	mu       sync.Mutex
	requests []openaiapi.ChatCompletionRequest
	chunks   []string
}

func (s *completionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req openaiapi.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	for _, chunk := range s.chunks {
		payload, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion.chunk",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": chunk}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (s *completionServer) request(i int) openaiapi.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func TestOpenAIProviderStreamsAndRemembers(t *testing.T) {
	backend := &completionServer{chunks: []string{"Hi", "", " there"}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	temp := 0.6
	p := NewOpenAIProvider(OpenAIOptions{
		APIKey:            "sk-test",
		BaseURL:           srv.URL + "/v1",
		Model:             "gpt-test",
		SystemInstruction: "Be wise.",
		Temperature:       &temp,
	}, logger.Discard())

	stream, err := p.Send(context.Background(), "Hello")
	require.NoError(t, err)
	got, err := drain(t, stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	assert.Equal(t, []string{"Hi", " there"}, got)

	first := backend.request(0)
	assert.True(t, first.Stream)
	assert.Equal(t, "gpt-test", first.Model)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, openaiapi.ChatMessageRoleSystem, first.Messages[0].Role)

	stream, err = p.Send(context.Background(), "Again")
	require.NoError(t, err)
	_, err = drain(t, stream)
	require.NoError(t, err)
	stream.Close()

	second := backend.request(1)
	require.Len(t, second.Messages, 4)
	assert.Equal(t, "Hello", second.Messages[1].Content)
	assert.Equal(t, "Hi there", second.Messages[2].Content)
	assert.Equal(t, "Again", second.Messages[3].Content)
}

func TestOpenAIProviderSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIOptions{APIKey: "bad", BaseURL: srv.URL + "/v1", Model: "m"}, logger.Discard())
	_, err := p.Send(context.Background(), "Hello")
	assert.Error(t, err)
}
