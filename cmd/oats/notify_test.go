package main

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"oats/internal/testsupport"
)

func newNtfyRecorder(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		titles []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), titles...)
	}
}

func TestTranscodeSendsBatchNotification(t *testing.T) {
	server, titles := newNtfyRecorder(t)
	env := setupCLITestEnv(t, testsupport.WithFormats("MP3 CBR 320"), testsupport.WithNtfyTopic(server.URL))
	album := writeAlbum(t, t.TempDir(), "Album")

	if out, _, err := runCLI(t, []string{album}, env.configPath); err != nil {
		t.Fatalf("transcode: %v\n%s", err, out)
	}
	got := titles()
	if len(got) != 1 || got[0] != "OATS - Batch Complete" {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestTestNotifyCommand(t *testing.T) {
	server, titles := newNtfyRecorder(t)
	env := setupCLITestEnv(t, testsupport.WithNtfyTopic(server.URL))

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if got := titles(); len(got) != 1 || got[0] != "OATS - Test" {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notification not sent")
}
