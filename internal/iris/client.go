package iris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kapu/fclog-bot-go/pkg/errors"
	"go.uber.org/zap"
)

// Client talks to the Iris KakaoTalk bridge. Only the outbound reply
// endpoint and the config endpoint (as a health check) are used.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// SendMessage posts a text message to a KakaoTalk room.
func (c *Client) SendMessage(ctx context.Context, room, message string) error {
	req := ReplyRequest{
		Type: "text",
		Room: room,
		Data: message,
	}

	if err := c.post(ctx, "/reply", req); err != nil {
		c.logger.Debug("Iris reply failed",
			zap.Error(err),
			zap.String("room", room),
		)
		return err
	}

	return nil
}

// Ping checks that the bridge answers on its config endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/config", nil)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return errors.NewAPIError("failed to marshal request", 400, map[string]any{
			"path": path,
		}).WithCause(err)
	}
	return c.send(ctx, http.MethodPost, path, bytes.NewReader(jsonData))
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.NewAPIError("failed to create request", 500, map[string]any{
			"path": path,
		}).WithCause(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewAPIError("iris request failed", 500, map[string]any{
			"path": path,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewAPIError(
			fmt.Sprintf("Iris API error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{
				"path": path,
				"body": string(bodyBytes),
			},
		)
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
