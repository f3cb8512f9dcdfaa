// Package push is the delivery edge: a thin client for the mobile push
// gateway. Delivery is best-effort; retry policy lives in the notify
// pipeline, not here.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one push delivery request.
type Message struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Gateway delivers push messages to users' devices.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

// Config configures the HTTP gateway client.
type Config struct {
	Endpoint string
	Token    string
}

type httpGateway struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTP returns a Gateway that POSTs JSON to the configured endpoint.
// Per-call deadlines come from the caller's context; the client timeout
// is a backstop only.
func NewHTTP(cfg Config) (Gateway, error) {
	ep := strings.TrimSpace(cfg.Endpoint)
	if ep == "" {
		return nil, errors.New("push endpoint is required")
	}
	return &httpGateway{
		endpoint: ep,
		token:    strings.TrimSpace(cfg.Token),
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *httpGateway) Send(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Nop returns a Gateway that accepts and discards every message.
// Used when push is disabled in config.
func Nop() Gateway { return nopGateway{} }

type nopGateway struct{}

func (nopGateway) Send(context.Context, Message) error { return nil }
