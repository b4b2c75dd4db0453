package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendSSEEventFormatsFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	if err := SendSSEEvent(rec, rec, "delta", map[string]string{"text": "Hi"}); err != nil {
		t.Fatalf("SendSSEEvent err: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	want := "event: delta\ndata: {\"text\":\"Hi\"}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("expected %q, got %q", want, rec.Body.String())
	}
	if !rec.Flushed {
		t.Fatal("expected frame to be flushed")
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusBadRequest, "bad input")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"bad input"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := DecodeJSON(strings.NewReader(`{"text":"hello"}`), &payload); err != nil {
		t.Fatalf("DecodeJSON err: %v", err)
	}
	if payload.Text != "hello" {
		t.Fatalf("expected hello, got %q", payload.Text)
	}
}
