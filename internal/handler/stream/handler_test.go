package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/wise-mentor/backend/internal/logger"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/exchange"
)

type fakeProvider struct {
	fragments []string
	err       error
}

func (p *fakeProvider) Send(context.Context, string) (ai.Stream, error) {
	return &fakeStream{fragments: append([]string(nil), p.fragments...), err: p.err}, nil
}

type fakeStream struct {
	fragments []string
	err       error
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.fragments) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *fakeStream) Close() error { return nil }

func setupRouter(p ai.Provider) (*chi.Mux, *chatservice.Service, *exchange.Orchestrator) {
	chatSvc := chatservice.NewService("Greetings.")
	orch := exchange.New(chatSvc, p, logger.Discard())

	r := chi.NewRouter()
	New(chatSvc, orch, logger.Discard()).RegisterRoutes(r)
	return r, chatSvc, orch
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
	return resp
}

func eventNames(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestStreamDeliversReply(t *testing.T) {
	r, chatSvc, _ := setupRouter(&fakeProvider{fragments: []string{"Hi", " there"}})

	resp := get(r, "/stream?message=Hello")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	names := eventNames(resp.Body.String())
	require.NotEmpty(t, names)
	assert.Equal(t, "start", names[0])
	assert.Equal(t, []string{"message", "end"}, names[len(names)-2:])
	assert.Contains(t, resp.Body.String(), `"content":"Hi there"`)

	require.Eventually(t, func() bool { return !chatSvc.IsBusy() }, 5*time.Second, 10*time.Millisecond)
}

func TestStreamFailureSendsFallbackOnly(t *testing.T) {
	r, chatSvc, _ := setupRouter(&fakeProvider{err: errors.New("upstream 503: backend overloaded")})

	resp := get(r, "/stream?message=Hello")
	body := resp.Body.String()

	names := eventNames(body)
	assert.Contains(t, names, "error")
	assert.Contains(t, body, exchange.FallbackText)
	assert.NotContains(t, body, "overloaded")

	require.Eventually(t, func() bool { return !chatSvc.IsBusy() }, 5*time.Second, 10*time.Millisecond)
	last, _ := chatSvc.Snapshot().Last()
	assert.Equal(t, exchange.FallbackText, last.Text)
}

func TestStreamBlankMessageIsIgnored(t *testing.T) {
	r, chatSvc, _ := setupRouter(&fakeProvider{})

	resp := get(r, "/stream?message=%20%20")

	assert.Equal(t, []string{"ignored", "end"}, eventNames(resp.Body.String()))
	assert.Contains(t, resp.Body.String(), `"reason":"blank"`)
	assert.Len(t, chatSvc.Snapshot().Messages, 1)
}

func TestEventsPushesSnapshots(t *testing.T) {
	r, _, orch := setupRouter(&fakeProvider{fragments: []string{"ok"}})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readTranscript := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "event: transcript") {
				data, err := reader.ReadString('\n')
				require.NoError(t, err)
				return data
			}
		}
	}

	assert.Contains(t, readTranscript(), "Greetings.")

	_, err = orch.Exchange(ctx, "Hello")
	require.NoError(t, err)

	for {
		data := readTranscript()
		if strings.Contains(data, `"busy":false`) {
			assert.Contains(t, data, `"text":"ok"`)
			return
		}
	}
}
