// Package chatapi is the HTTP adapter for the vocab site's AI chat
// backend: preset key listing, batched chat, and streaming chat with
// incremental frame decoding.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"vocabchat/internal/domain"
	"vocabchat/internal/infra/config"
	"vocabchat/internal/infra/tracer"
)

// Endpoint paths on the chat backend.
const (
	keysPath       = "/api/ai/keys"
	chatPath       = "/api/ai/chat"
	chatStreamPath = "/api/ai/chat/stream"
)

// readChunkSize is the read buffer for the streaming body. Chunks
// arrive in arbitrary sizes regardless; the decoder does not care.
const readChunkSize = 4096

// Client talks to the chat backend over a pooled HTTP transport.
// It implements domain.ChatTransport.
type Client struct {
	baseURL      string
	jsonClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// New creates a client with configured timeouts. The batched and
// streaming paths share one pooled transport but carry different
// whole-exchange deadlines.
func New(cfg config.ServerConfig, logger *slog.Logger) *Client {
	connTimeout := cfg.ConnTimeout
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}
	respTimeout := cfg.RespTimeout
	if respTimeout <= 0 {
		respTimeout = defaultRespTimeout
	}
	streamTimeout := cfg.StreamTimeout
	if streamTimeout <= 0 {
		streamTimeout = defaultStreamTimeout
	}

	transport := newPooledTransport(connTimeout, cfg.Pool)
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		jsonClient:   &http.Client{Transport: transport, Timeout: respTimeout},
		streamClient: &http.Client{Transport: transport, Timeout: streamTimeout},
		logger:       logger,
	}
}

// --- wire types ---

// chatPayload is the request body shared by the batched and streaming
// endpoints. A preset credential sends api_key:"" plus key_index; an
// inline secret sends api_key and omits key_index.
type chatPayload struct {
	Content  string `json:"content"`
	APIKey   string `json:"api_key"`
	KeyIndex *int   `json:"key_index,omitempty"`
	Model    string `json:"model"`
	System   string `json:"system"`
}

type chatResponse struct {
	Message string `json:"message"`
}

type keysResponse struct {
	Count int                  `json:"count"`
	Keys  []domain.PresetEntry `json:"keys"`
}

func toChatPayload(req domain.ChatRequest) chatPayload {
	p := chatPayload{
		Content: req.Content,
		Model:   req.Model,
		System:  req.System,
	}
	switch c := req.Credential.(type) {
	case domain.InlineSecret:
		p.APIKey = c.Value
	case domain.PresetRef:
		idx := c.Index
		p.KeyIndex = &idx
	}
	return p
}

// Keys fetches the masked preset key listing. Called once at startup;
// the entries are immutable afterwards.
func (c *Client) Keys(ctx context.Context) ([]domain.PresetEntry, error) {
	ctx, span := tracer.StartSpan(ctx, "chat.keys")
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+keysPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.jsonClient.Do(httpReq)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		err := statusError(httpResp.StatusCode, respBody)
		tracer.RecordError(span, err)
		return nil, err
	}

	var kr keysResponse
	if err := json.Unmarshal(respBody, &kr); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal keys: %w", err)
	}

	span.SetAttributes(tracer.IntAttr("chat.preset_keys", len(kr.Keys)))
	tracer.SetOK(span)
	c.logger.Debug("preset keys fetched", "count", len(kr.Keys))
	return kr.Keys, nil
}

// Chat implements domain.ChatTransport: one request, one full JSON
// body, no increments. An absent message field comes back as "".
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "chat.batched",
		trace.WithAttributes(tracer.StringAttr("chat.model", req.Model)),
	)
	defer span.End()

	body, err := json.Marshal(toChatPayload(req))
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, c.jsonClient, c.baseURL+chatPath, body)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	// The backend lstrips leading newlines from the model reply;
	// mirror it in case an older deployment does not.
	message := strings.TrimLeft(cr.Message, "\r\n")

	tracer.SetOK(span)
	c.logger.Debug("batched chat completed", "reply_len", len(message))
	return message, nil
}

// ChatStream implements domain.ChatTransport. It opens the streaming
// endpoint and pushes decoded frames on the returned channel in arrival
// order. The read loop and the response body both stop on a terminator
// frame, a server error frame, end of stream, or ctx cancellation.
func (c *Client) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamFrame, error) {
	ctx, span := tracer.StartSpan(ctx, "chat.stream",
		trace.WithAttributes(tracer.StringAttr("chat.model", req.Model)),
	)

	body, err := json.Marshal(toChatPayload(req))
	if err != nil {
		tracer.RecordError(span, err)
		span.End()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := doStreamRequest(ctx, c.streamClient, c.baseURL+chatStreamPath, body)
	if err != nil {
		tracer.RecordError(span, err)
		span.End()
		return nil, err
	}

	ch := make(chan domain.StreamFrame, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		defer span.End()

		decoder := NewFrameDecoder()
		buf := make([]byte, readChunkSize)
		frameCount := 0
		for {
			n, readErr := httpResp.Body.Read(buf)
			if n > 0 {
				for _, frame := range decoder.Feed(buf[:n]) {
					frameCount++
					if !sendFrame(ctx, ch, frame) {
						return
					}
					// The terminator stops the entire read loop, not
					// just this chunk's line pass. A server error ends
					// the stream the same way.
					if frame.Kind == domain.FrameTerminator {
						tracer.SetOK(span)
						return
					}
					if frame.Kind == domain.FrameServerError {
						tracer.RecordError(span, fmt.Errorf("%w: %s", domain.ErrStreamAborted, frame.Text))
						return
					}
				}
			}
			if readErr != nil {
				if readErr == io.EOF {
					for _, frame := range decoder.Flush() {
						if !sendFrame(ctx, ch, frame) {
							return
						}
					}
					tracer.SetOK(span)
					span.SetAttributes(tracer.IntAttr("chat.frames", frameCount))
					return
				}
				// Mid-stream transport failure: surface it as a server
				// error frame so the session fails with a message.
				err := fmt.Errorf("%w: %v", domain.ErrStreamAborted, readErr)
				tracer.RecordError(span, err)
				c.logger.Warn("stream read failed", "error", readErr)
				sendFrame(ctx, ch, domain.StreamFrame{
					Kind: domain.FrameServerError,
					Text: err.Error(),
				})
				return
			}
		}
	}()

	return ch, nil
}

// sendFrame delivers a frame unless ctx is cancelled first.
func sendFrame(ctx context.Context, ch chan<- domain.StreamFrame, frame domain.StreamFrame) bool {
	select {
	case ch <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

// Compile-time interface check.
var _ domain.ChatTransport = (*Client)(nil)
