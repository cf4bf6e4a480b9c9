package notifications_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"oats/internal/config"
	"oats/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newRecorder(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("rejected"))
	}))
	t.Cleanup(server.Close)
	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func configFor(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	return &cfg
}

func TestBatchCompletedMessage(t *testing.T) {
	server, requests := newRecorder(t, http.StatusOK)
	svc := notifications.NewService(configFor(server.URL))

	err := svc.NotifyBatchCompleted(t.Context(), notifications.BatchOutcome{
		Succeeded: 4,
		Formats:   []string{"MP3 CBR 320", "FLAC"},
		Torrents:  2,
		Elapsed:   61 * time.Second,
	})
	if err != nil {
		t.Fatalf("NotifyBatchCompleted: %v", err)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	got := reqs[0]
	if got.title != "OATS - Batch Complete" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.tags != "oats,batch,completed" {
		t.Fatalf("unexpected tags %q", got.tags)
	}
	if got.priority != "" {
		t.Fatalf("expected default priority, got %q", got.priority)
	}
	for _, want := range []string{"4 of 4 jobs succeeded", "(MP3 CBR 320, FLAC)", "in 1m1s", "Torrents: 2"} {
		if !strings.Contains(got.body, want) {
			t.Fatalf("body %q missing %q", got.body, want)
		}
	}
}

func TestBatchWithFailuresIsHighPriority(t *testing.T) {
	server, requests := newRecorder(t, http.StatusOK)
	svc := notifications.NewService(configFor(server.URL))

	if err := svc.NotifyBatchCompleted(t.Context(), notifications.BatchOutcome{Succeeded: 1, Failed: 2}); err != nil {
		t.Fatalf("NotifyBatchCompleted: %v", err)
	}
	got := requests()[0]
	if got.priority != "high" || !strings.Contains(got.tags, "failed") {
		t.Fatalf("unexpected headers: %+v", got)
	}
	if !strings.Contains(got.body, "1 of 3 jobs succeeded") {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestNotifyErrorIncludesContext(t *testing.T) {
	server, requests := newRecorder(t, http.StatusOK)
	svc := notifications.NewService(configFor(server.URL))

	if err := svc.NotifyError(t.Context(), errors.New("disk full"), "torrent creation"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	got := requests()[0]
	if got.body != "torrent creation: disk full" {
		t.Fatalf("unexpected body %q", got.body)
	}
	if got.title != "OATS - Error" {
		t.Fatalf("unexpected title %q", got.title)
	}
}

func TestServerErrorIsReported(t *testing.T) {
	server, _ := newRecorder(t, http.StatusForbidden)
	svc := notifications.NewService(configFor(server.URL))

	err := svc.TestNotification(t.Context())
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmptyTopicIsNoop(t *testing.T) {
	svc := notifications.NewService(configFor(""))
	if err := svc.TestNotification(t.Context()); err != nil {
		t.Fatalf("noop returned error: %v", err)
	}
	if err := svc.NotifyBatchCompleted(t.Context(), notifications.BatchOutcome{Failed: 1}); err != nil {
		t.Fatalf("noop returned error: %v", err)
	}
}
