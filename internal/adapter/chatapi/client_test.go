package chatapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vocabchat/internal/domain"
	"vocabchat/internal/infra/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(serverURL string) *Client {
	return New(config.ServerConfig{BaseURL: serverURL}, newTestLogger())
}

func collectFrames(t *testing.T, ch <-chan domain.StreamFrame) []domain.StreamFrame {
	t.Helper()
	var frames []domain.StreamFrame
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		case <-timeout:
			t.Fatalf("timed out waiting for stream to close; got %+v", frames)
		}
	}
}

func TestClientKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/ai/keys" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"count":2,"keys":[{"index":0,"label":"key1","masked":"sk-***abc"},{"index":1,"label":"key2","masked":"sk-***def"}]}`)
	}))
	defer server.Close()

	keys, err := newTestClient(server.URL).Keys(t.Context())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	if keys[1].Index != 1 || keys[1].Label != "key2" || keys[1].Masked != "sk-***def" {
		t.Errorf("keys[1] = %+v", keys[1])
	}
}

func TestClientKeysServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Keys(t.Context())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrServerStatus) {
		t.Errorf("error %v should wrap ErrServerStatus", err)
	}
}

func TestClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		fmt.Fprint(w, `{"message":"\r\nok"}`)
	}))
	defer server.Close()

	msg, err := newTestClient(server.URL).Chat(t.Context(), domain.ChatRequest{
		Content:    "hi",
		Credential: domain.InlineSecret{Value: "sk-x"},
		Model:      "test-model",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	// Leading CR/LF is stripped from the reply.
	if msg != "ok" {
		t.Errorf("message = %q, want %q", msg, "ok")
	}
}

func TestClientChatHTTP500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend busy", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Chat(t.Context(), domain.ChatRequest{Content: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("error %q should contain HTTP 500", err.Error())
	}
	if !errors.Is(err, domain.ErrServerStatus) {
		t.Errorf("error %v should wrap ErrServerStatus", err)
	}
}

func TestClientChatMissingMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	msg, err := newTestClient(server.URL).Chat(t.Context(), domain.ChatRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if msg != "" {
		t.Errorf("message = %q, want empty", msg)
	}
}

// TestClientPayloadEncoding checks the credential wire contract: an
// inline secret sends api_key and omits key_index; a preset reference
// sends api_key:"" plus key_index.
func TestClientPayloadEncoding(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = nil
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		fmt.Fprint(w, `{"message":"ok"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Chat(t.Context(), domain.ChatRequest{
		Content:    "hello",
		Credential: domain.InlineSecret{Value: "sk-x"},
		Model:      "m",
		System:     "s",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if captured["api_key"] != "sk-x" {
		t.Errorf("api_key = %v, want sk-x", captured["api_key"])
	}
	if _, present := captured["key_index"]; present {
		t.Error("key_index should be omitted for an inline secret")
	}
	if captured["content"] != "hello" || captured["model"] != "m" || captured["system"] != "s" {
		t.Errorf("payload = %v", captured)
	}

	_, err = client.Chat(t.Context(), domain.ChatRequest{
		Content:    "hello",
		Credential: domain.PresetRef{Index: 1},
		Model:      "m",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if captured["api_key"] != "" {
		t.Errorf("api_key = %v, want empty string", captured["api_key"])
	}
	if captured["key_index"] != float64(1) {
		t.Errorf("key_index = %v, want 1", captured["key_index"])
	}
}

func TestClientChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/chat/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("accept = %s", accept)
		}
		flusher := w.(http.Flusher)
		// Deliberately split mid-line and mid-frame across flushes.
		io.WriteString(w, "data: {\"con")
		flusher.Flush()
		io.WriteString(w, "tent\":\"Hi\"}\ndata: {\"content\":\" there\"}\nda")
		flusher.Flush()
		io.WriteString(w, "ta: [DONE]\n")
		flusher.Flush()
	}))
	defer server.Close()

	ch, err := newTestClient(server.URL).ChatStream(t.Context(), domain.ChatRequest{
		Content:    "Hello",
		Credential: domain.PresetRef{Index: 0},
		Model:      "m",
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	frames := collectFrames(t, ch)
	want := []domain.StreamFrame{
		{Kind: domain.FrameDelta, Text: "Hi"},
		{Kind: domain.FrameDelta, Text: " there"},
		{Kind: domain.FrameTerminator},
	}
	if len(frames) != len(want) {
		t.Fatalf("frames = %+v, want %+v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frames[%d] = %+v, want %+v", i, frames[i], want[i])
		}
	}
}

// TestClientChatStreamTerminatorStopsLoop keeps the connection open
// after sending the terminator. The read loop must stop on the
// terminator itself, not wait for the server to hang up.
func TestClientChatStreamTerminatorStopsLoop(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: {\"content\":\"x\"}\ndata: [DONE]\n")
		flusher.Flush()
		<-release // hold the connection open
	}))
	defer server.Close()
	defer close(release)

	ch, err := newTestClient(server.URL).ChatStream(t.Context(), domain.ChatRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	frames := collectFrames(t, ch)
	if len(frames) != 2 || frames[1].Kind != domain.FrameTerminator {
		t.Fatalf("frames = %+v, want delta then terminator", frames)
	}
}

func TestClientChatStreamServerErrorStopsLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"content\":\"partial\"}\n")
		io.WriteString(w, "data: {\"error\":\"rate limited\"}\n")
		io.WriteString(w, "data: {\"content\":\"never seen\"}\n")
	}))
	defer server.Close()

	ch, err := newTestClient(server.URL).ChatStream(t.Context(), domain.ChatRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	frames := collectFrames(t, ch)
	last := frames[len(frames)-1]
	if last.Kind != domain.FrameServerError || last.Text != "rate limited" {
		t.Fatalf("last frame = %+v, want server error 'rate limited'", last)
	}
	for _, frame := range frames {
		if frame.Kind == domain.FrameDelta && frame.Text == "never seen" {
			t.Error("frames after the server error must not be emitted")
		}
	}
}

func TestClientChatStreamNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing api_key", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ChatStream(t.Context(), domain.ChatRequest{Content: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 400") {
		t.Errorf("error %q should contain HTTP 400", err.Error())
	}
}

func TestClientChatStreamEOFWithoutTerminator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"content\":\"tail\"}") // no trailing newline
	}))
	defer server.Close()

	ch, err := newTestClient(server.URL).ChatStream(t.Context(), domain.ChatRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	frames := collectFrames(t, ch)
	if len(frames) != 1 || frames[0] != (domain.StreamFrame{Kind: domain.FrameDelta, Text: "tail"}) {
		t.Fatalf("frames = %+v, want the flushed tail delta", frames)
	}
}
