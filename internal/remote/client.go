// Package remote forwards validated records to the central backend over
// HTTP. Transient failures are retried with exponential backoff; a record is
// only considered delivered on a 2xx response.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/smsbridge/server/internal/model"
)

// pushPayload is the wire shape expected by the central backend.
type pushPayload struct {
	SeqID        int64  `json:"seq_id"`
	MobileNumber string `json:"mobile_number"`
	CountryCode  string `json:"country_code"`
	LocalMobile  string `json:"local_mobile"`
	DeviceID     string `json:"device_id"`
	ReceivedAt   string `json:"received_at"`
	ValidatedAt  string `json:"validated_at"`
}

// Client pushes validated records to the remote backend.
type Client struct {
	http *http.Client
}

// NewClient creates a remote client with a bounded request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Push delivers one validated record to url. Retries up to three times with
// exponential backoff on network errors and 5xx responses; 4xx responses are
// permanent failures and surface immediately.
func (c *Client) Push(ctx context.Context, url string, msg model.InboundMessage) error {
	payload := pushPayload{
		SeqID:        msg.Seq,
		MobileNumber: msg.Number,
		CountryCode:  msg.CountryCode,
		LocalMobile:  msg.LocalMobile,
		DeviceID:     msg.DeviceID,
		ReceivedAt:   msg.ReceivedAt.UTC().Format(time.RFC3339),
		ValidatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build push request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("push seq %d: %w", msg.Seq, err))
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("push seq %d: backend returned %d", msg.Seq, resp.StatusCode))
		default:
			return fmt.Errorf("push seq %d: backend rejected with %d", msg.Seq, resp.StatusCode)
		}
	})
}
