package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kapu/fclog-bot-go/internal/util"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"go.uber.org/zap"
)

// Client executes Discord-compatible webhooks.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Execute posts msg to the webhook URL. The URL carries a secret token, so
// errors and logs only ever contain its masked form.
func (c *Client) Execute(ctx context.Context, webhookURL string, msg *Message) error {
	masked := util.MaskURL(webhookURL)

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.NewAPIError("failed to marshal webhook message", 400, map[string]any{
			"url": masked,
		}).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.NewAPIError("failed to create webhook request", 400, map[string]any{
			"url": masked,
		}).WithCause(util.RedactURLError(err, masked))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewAPIError("webhook request failed", 500, map[string]any{
			"url": masked,
		}).WithCause(util.RedactURLError(err, masked))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
		c.logger.Warn("Webhook rate limited",
			zap.String("url", masked),
			zap.Float64("retry_after_seconds", retryAfter),
		)
		return errors.NewAPIError("webhook rate limited", resp.StatusCode, map[string]any{
			"url":         masked,
			"retry_after": retryAfter,
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewAPIError(fmt.Sprintf("webhook error: %s", resp.Status), resp.StatusCode, map[string]any{
			"url":  masked,
			"body": string(bodyBytes),
		})
	}

	return nil
}
