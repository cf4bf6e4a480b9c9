package services_test

import (
	"errors"
	"strings"
	"testing"

	"oats/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "encoding", "lame", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"encoding", "lame", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if err.Error() != "unspecified failure" {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
	base := errors.New("disk full")
	err = services.Wrap(nil, "torrent", "write", "", base)
	if !errors.Is(err, base) || err.Error() != "torrent: write: disk full" {
		t.Fatalf("unexpected unclassified error: %v", err)
	}
	if services.IsFatalConfig(err) {
		t.Fatal("unclassified error must not be fatal config")
	}
}

func TestIsFatalConfig(t *testing.T) {
	if !services.IsFatalConfig(services.Wrap(services.ErrConfiguration, "format", "parse", "bad", nil)) {
		t.Fatal("expected configuration error to be fatal")
	}
	if services.IsFatalConfig(services.Wrap(services.ErrExternalTool, "encoding", "run", "exit 1", nil)) {
		t.Fatal("expected external tool error to be non-fatal")
	}
	if services.IsFatalConfig(nil) {
		t.Fatal("expected nil to be non-fatal")
	}
}
