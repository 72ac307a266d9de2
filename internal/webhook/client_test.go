package webhook

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kapu/fclog-bot-go/pkg/errors"
	"go.uber.org/zap"
)

func TestExecuteSendsEmbed(t *testing.T) {
	var got Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(time.Second, zap.NewNop())
	msg := &Message{
		Username:  "FC Log",
		AvatarURL: "https://img/bot.png",
		Embeds: []Embed{{
			Title:     "Joined: Tanaka",
			Color:     0x2ecc71,
			Thumbnail: &EmbedThumbnail{URL: "https://img/tanaka.jpg"},
			Fields:    []EmbedField{{Name: "Rank", Value: "Member", Inline: true}},
		}},
	}

	if err := client.Execute(context.Background(), server.URL+"/api/webhooks/1/token", msg); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got.Username != "FC Log" || len(got.Embeds) != 1 || got.Embeds[0].Thumbnail.URL != "https://img/tanaka.jpg" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestExecuteErrorsHideToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Unknown Webhook"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(time.Second, zap.NewNop())
	err := client.Execute(context.Background(), server.URL+"/api/webhooks/1/super-secret", &Message{Content: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.StatusCodeOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", errors.StatusCodeOf(err))
	}

	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Fatalf("webhook token leaked into error: %v", err)
	}
	if strings.Contains(apiErr.Context["url"].(string), "super-secret") {
		t.Fatalf("webhook token leaked into error context: %v", apiErr.Context["url"])
	}
}

func TestExecuteTimeoutHidesToken(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(50*time.Millisecond, zap.NewNop())
	err := client.Execute(context.Background(), server.URL+"/api/webhooks/1/super-secret", &Message{Content: "x"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Fatalf("webhook token leaked into error: %v", err)
	}
	if errors.StatusCodeOf(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", errors.StatusCodeOf(err))
	}
}

func TestExecuteRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1.5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(time.Second, zap.NewNop())
	err := client.Execute(context.Background(), server.URL+"/hook", &Message{Content: "x"})
	if errors.StatusCodeOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
}
