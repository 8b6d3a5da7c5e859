package telnyx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/timetocall/callbridge/pkg/telnyx"
)

func TestDial(t *testing.T) {
	t.Parallel()
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"call_control_id":"cc-123"}}`))
	}))
	t.Cleanup(srv.Close)

	c := telnyx.New("key-1", "conn-1", "+15550001111", telnyx.WithBaseURL(srv.URL))
	id, err := c.Dial(t.Context(), "+15552223333", "https://bridge.example/telnyx/webhook")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if id != "cc-123" {
		t.Errorf("call control id: got %q, want cc-123", id)
	}
	if gotPath != "/calls" {
		t.Errorf("path: got %q, want /calls", gotPath)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("auth: got %q", gotAuth)
	}
	if gotBody["connection_id"] != "conn-1" || gotBody["to"] != "+15552223333" || gotBody["from"] != "+15550001111" {
		t.Errorf("unexpected dial body: %v", gotBody)
	}
	// Streaming must not be requested at dial time.
	if _, ok := gotBody["stream_url"]; ok {
		t.Error("dial body must not carry stream_url")
	}
}

func TestDial_MissingControlID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	c := telnyx.New("k", "conn", "+15550001111", telnyx.WithBaseURL(srv.URL))
	if _, err := c.Dial(t.Context(), "+15552223333", ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestDial_ErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":[{"title":"Invalid number"}]}`, http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	c := telnyx.New("k", "conn", "+15550001111", telnyx.WithBaseURL(srv.URL))
	_, err := c.Dial(t.Context(), "bogus", "")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestStartStreaming(t *testing.T) {
	t.Parallel()
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"data":{"result":"ok"}}`))
	}))
	t.Cleanup(srv.Close)

	c := telnyx.New("k", "conn", "+15550001111", telnyx.WithBaseURL(srv.URL))
	err := c.StartStreaming(t.Context(), "cc-9", "wss://bridge.example/telnyx/media-stream?call_id=abc")
	if err != nil {
		t.Fatalf("StartStreaming: %v", err)
	}
	if gotPath != "/calls/cc-9/actions/streaming_start" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotBody["stream_bidirectional_codec"] != "L16" {
		t.Errorf("codec: got %v, want L16", gotBody["stream_bidirectional_codec"])
	}
	if gotBody["stream_bidirectional_sampling_rate"] != float64(16000) {
		t.Errorf("rate: got %v, want 16000", gotBody["stream_bidirectional_sampling_rate"])
	}
}

func TestHangup(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"data":{"result":"ok"}}`))
	}))
	t.Cleanup(srv.Close)

	c := telnyx.New("k", "conn", "+15550001111", telnyx.WithBaseURL(srv.URL))
	if err := c.Hangup(t.Context(), "cc-9"); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if gotPath != "/calls/cc-9/actions/hangup" {
		t.Errorf("path: got %q", gotPath)
	}
}
