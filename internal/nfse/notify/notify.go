// Package notify announces terminal sale outcomes to a configured webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"nfseBack/internal/models"
)

const (
	SignatureHeader = "X-Signature"
	RequestIDHeader = "X-Request-Id"
)

// Logger is the logging subset used by the notifier.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Payload is the webhook body.
type Payload struct {
	UID         string            `json:"uid"`
	Status      models.SaleStatus `json:"status"`
	Protocol    *string           `json:"protocol"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	UserName    string            `json:"userName"`
	ProcessedAt *time.Time        `json:"processedAt"`
}

// PayloadFor builds the webhook body for sale.
func PayloadFor(sale models.Sale) Payload {
	return Payload{
		UID:         sale.UID,
		Status:      sale.Status,
		Protocol:    sale.Protocol,
		Amount:      sale.Amount,
		Description: sale.Description,
		UserName:    sale.Identification,
		ProcessedAt: sale.ProcessedAt,
	}
}

// Notifier posts outcomes once, without retry.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	logger Logger
}

func New(url, secret string, client *http.Client, logger Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Notifier{url: url, secret: secret, client: client, logger: logger}
}

// Notify never fails: an empty URL skips the call and delivery errors are logged.
func (n *Notifier) Notify(ctx context.Context, sale models.Sale) {
	if n.url == "" {
		n.logger.Infof("notify: WEBHOOK_URL is empty, skipping webhook for sale %s", sale.UID)
		return
	}

	body, err := json.Marshal(PayloadFor(sale))
	if err != nil {
		n.logger.Errorf("notify: encode payload for sale %s: %v", sale.UID, err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Errorf("notify: build request for sale %s: %v", sale.UID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Errorf("notify: failed to fire webhook for sale %s: %v", sale.UID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		n.logger.Errorf("notify: failed to fire webhook for sale %s: %s %s", sale.UID, resp.Status, bytes.TrimSpace(b))
		return
	}
	n.logger.Infof("notify: fired webhook for sale %s, status: %s", sale.UID, sale.Status)
}
