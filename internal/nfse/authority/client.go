// Package authority submits signed invoices to the municipal tax authority.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

const (
	statusOK    = "ok"
	maxBodySize = 1 << 20
)

type Config struct {
	URL     string
	Timeout time.Duration
	// HTTPClient replaces the IPv4-only client built by NewClient.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// response is the authority's JSON body.
type response struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Protocolo string `json:"protocolo"`
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("authority: url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = NewIPv4HTTPClient(timeout)
	}
	return &Client{url: cfg.URL, timeout: timeout, httpClient: client, logger: logger}, nil
}

// NewIPv4HTTPClient returns a client whose connections are IPv4 only. The authority and the
// webhook receivers are reached this way.
func NewIPv4HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: ipv4Transport()}
}

// ipv4Transport dials tcp4 only; the authority endpoint is not reachable over IPv6.
func ipv4Transport() *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp4", addr)
	}
	return t
}

// Submit posts the signed document once. It never returns an error: every outcome,
// transport failures included, is folded into the Result.
func (c *Client) Submit(ctx context.Context, signed []byte) Result {
	log := c.logger.With("op", "authority.Submit")

	body, err := c.post(ctx, signed)
	if err != nil {
		var aerr *Error
		if errors.As(err, &aerr) {
			log.Warn("authority rejected document", "status", aerr.StatusCode)
			return rejectedFromError(aerr)
		}
		log.Error("authority request failed", "err", err)
		return TransportFailure{Message: err.Error()}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		log.Warn("authority returned undecodable body", "err", err)
		return Rejected{
			Message:    fmt.Sprintf("invalid authority response: %v", err),
			Raw:        quote(string(body)),
			StatusCode: http.StatusOK,
		}
	}
	raw := compact(body)
	if out.Status != statusOK {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("authority returned status %q", out.Status)
		}
		return Rejected{Protocol: optional(out.Protocolo), Message: msg, Raw: raw, StatusCode: http.StatusOK}
	}
	log.Info("authority accepted document", "protocol", out.Protocolo)
	return Accepted{Protocol: out.Protocolo, Message: out.Message, Raw: raw}
}

func (c *Client) post(ctx context.Context, signed []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(signed))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	}
	return body, nil
}

func rejectedFromError(e *Error) Rejected {
	var out response
	if err := json.Unmarshal(e.Body, &out); err == nil {
		msg := out.Message
		if msg == "" {
			msg = e.Status
		}
		return Rejected{Protocol: optional(out.Protocolo), Message: msg, Raw: compact(e.Body), StatusCode: e.StatusCode}
	}
	text := strings.TrimSpace(string(e.Body))
	if text == "" {
		text = e.Status
	}
	return Rejected{Message: text, Raw: quote(text), StatusCode: e.StatusCode}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func compact(b []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return quote(string(b))
	}
	return buf.String()
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
