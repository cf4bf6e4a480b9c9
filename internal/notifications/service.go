package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"oats/internal/config"
)

const userAgent = "OATS/0.1.0"

// BatchOutcome summarizes a finished transcode batch.
type BatchOutcome struct {
	Succeeded int
	Failed    int
	Warnings  int
	Torrents  int
	Formats   []string
	Elapsed   time.Duration
}

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, outcome BatchOutcome) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, outcome BatchOutcome) error {
	var builder strings.Builder
	total := outcome.Succeeded + outcome.Failed
	fmt.Fprintf(&builder, "%d of %d jobs succeeded", outcome.Succeeded, total)
	if len(outcome.Formats) > 0 {
		fmt.Fprintf(&builder, " (%s)", strings.Join(outcome.Formats, ", "))
	}
	if outcome.Elapsed > 0 {
		fmt.Fprintf(&builder, " in %s", outcome.Elapsed.Round(time.Second))
	}
	if outcome.Warnings > 0 {
		fmt.Fprintf(&builder, "\nWarnings: %d", outcome.Warnings)
	}
	if outcome.Torrents > 0 {
		fmt.Fprintf(&builder, "\nTorrents: %d", outcome.Torrents)
	}

	data := payload{
		title:   "OATS - Batch Complete",
		message: builder.String(),
		tags:    []string{"oats", "batch", "completed"},
	}
	if outcome.Failed > 0 {
		data.title = "OATS - Batch Finished With Failures"
		data.tags = []string{"oats", "batch", "failed"}
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, context string) error {
	var builder strings.Builder
	context = strings.TrimSpace(context)
	if context != "" {
		builder.WriteString(context)
		builder.WriteString(": ")
	}
	if err != nil {
		builder.WriteString(err.Error())
	} else {
		builder.WriteString("unknown error")
	}
	data := payload{
		title:    "OATS - Error",
		message:  builder.String(),
		tags:     []string{"oats", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "OATS - Test",
		message:  "Notification system test",
		tags:     []string{"oats", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyBatchCompleted(context.Context, BatchOutcome) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
