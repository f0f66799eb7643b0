package outbound_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client posts outbound messages to the workflow-automation webhook. The
// webhook's downstream workflow delivers via the messaging carrier and
// persists the message; this client never writes the message itself — the
// persisted row comes back through the realtime stream and is reconciled
// against the optimistic placeholder.
type Client struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// SendRequest is the webhook payload for one outbound message.
type SendRequest struct {
	ConversationID string    `json:"conversation_id"`
	PhoneID        string    `json:"phone_id"`
	ToNumber       string    `json:"to_number"`
	FromNumber     string    `json:"from_number"`
	Body           string    `json:"body"`
	Direction      string    `json:"direction"`
	Timestamp      time.Time `json:"timestamp"`
	// ClientRef is a client-generated key the backend workflow may echo on
	// the persisted row one day; reconciliation does not rely on it yet.
	ClientRef string `json:"client_ref"`
}

// NewClient creates a webhook client.
func NewClient(webhookURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send posts one outbound message. Any non-2xx status is an error; the
// caller decides whether to surface it to the operator.
func (c *Client) Send(ctx context.Context, req SendRequest) error {
	if c.webhookURL == "" {
		return fmt.Errorf("outbound webhook URL is not configured")
	}

	req.Direction = "outbound"
	req.Timestamp = time.Now().UTC()
	if req.ClientRef == "" {
		req.ClientRef = uuid.NewString()
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("outbound webhook returned status %d", resp.StatusCode)
	}

	c.logger.Debug("Outbound message accepted by webhook",
		zap.String("conversation_id", req.ConversationID),
		zap.String("client_ref", req.ClientRef))
	return nil
}
