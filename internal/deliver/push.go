package deliver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tramita/internal/store"
)

const userAgent = "Tramita-Go/0.1.0"

// PushChannel posts browser notifications to an ntfy-compatible endpoint.
type PushChannel struct {
	endpoint string
	client   *http.Client
}

// NewPushChannel builds the browser channel. An empty endpoint yields a
// channel that reports success without sending, so local setups work with no
// push server configured.
func NewPushChannel(endpoint string, timeout time.Duration) *PushChannel {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &PushChannel{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PushChannel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *PushChannel) Method() store.DeliveryMethod { return store.MethodBrowser }

func (p *PushChannel) Deliver(ctx context.Context, notification *store.Notification, userID string) error {
	if p == nil || p.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/"+userID, strings.NewReader(notification.Content))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if notification.Title != "" {
		req.Header.Set("Title", notification.Title)
	}
	req.Header.Set("Tags", "tramita,"+string(notification.Type))
	if priority := pushPriority(notification.Priority); priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("push endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func pushPriority(priority store.Priority) string {
	switch priority {
	case store.PriorityLow:
		return "low"
	case store.PriorityHigh:
		return "high"
	case store.PriorityUrgent:
		return "urgent"
	default:
		return ""
	}
}
