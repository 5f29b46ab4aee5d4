package eventlog_test

import (
	"path/filepath"
	"testing"

	"github.com/swingsense/impact-detector/internal/eventlog"
)

func newTestLogger(t *testing.T) *eventlog.Logger {
	t.Helper()

	l, err := eventlog.NewLogger(filepath.Join(t.TempDir(), "detector.jsonl"))
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return l
}

func TestLogAndReadBack(t *testing.T) {
	t.Parallel()

	l := newTestLogger(t)

	if err := l.LogSession(eventlog.SessionStarted, "default", "session started", "", 0, 10); err != nil {
		t.Fatalf("LogSession() error = %v", err)
	}
	if err := l.LogImpact(1250, 0.9, 0.92, 0.75); err != nil {
		t.Fatalf("LogImpact() error = %v", err)
	}
	if err := l.LogClip(eventlog.ClipEncoded, "session-2026-09-01_10-00-00.wav", 4096, "", "", 0, "local"); err != nil {
		t.Fatalf("LogClip() error = %v", err)
	}

	events, hasMore, err := eventlog.ReadLast(l.Path(), 10, 0, eventlog.FilterAll)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if hasMore {
		t.Error("ReadLast() hasMore = true for 3 events with limit 10")
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}

	// Newest first
	if events[0].Type != eventlog.ClipEncoded {
		t.Errorf("events[0].Type = %q, want %q", events[0].Type, eventlog.ClipEncoded)
	}
	if events[2].Type != eventlog.SessionStarted {
		t.Errorf("events[2].Type = %q, want %q", events[2].Type, eventlog.SessionStarted)
	}
}

func TestReadLastFilter(t *testing.T) {
	t.Parallel()

	l := newTestLogger(t)

	if err := l.LogSession(eventlog.SessionStarted, "default", "", "", 0, 10); err != nil {
		t.Fatal(err)
	}
	if err := l.LogImpact(500, 0.8, 0.81, 0.75); err != nil {
		t.Fatal(err)
	}
	if err := l.LogImpact(900, 0.95, 0.97, 0.75); err != nil {
		t.Fatal(err)
	}
	if err := l.LogSession(eventlog.SessionStopped, "", "", "", 0, 0); err != nil {
		t.Fatal(err)
	}

	impacts, _, err := eventlog.ReadLast(l.Path(), 10, 0, eventlog.FilterImpact)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(impacts) != 2 {
		t.Fatalf("len(impacts) = %d, want 2", len(impacts))
	}
	for _, e := range impacts {
		if e.Type != eventlog.ImpactDetected {
			t.Errorf("filtered event type = %q, want %q", e.Type, eventlog.ImpactDetected)
		}
	}

	sessions, _, err := eventlog.ReadLast(l.Path(), 10, 0, eventlog.FilterSession)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
}

func TestReadLastPagination(t *testing.T) {
	t.Parallel()

	l := newTestLogger(t)

	for i := range 5 {
		if err := l.LogImpact(int64(i*100), 0.8, 0.81, 0.75); err != nil {
			t.Fatal(err)
		}
	}

	first, hasMore, err := eventlog.ReadLast(l.Path(), 2, 0, eventlog.FilterAll)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(first) != 2 || !hasMore {
		t.Fatalf("first page: got %d events, hasMore=%v, want 2 events with more", len(first), hasMore)
	}

	last, hasMore, err := eventlog.ReadLast(l.Path(), 2, 4, eventlog.FilterAll)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(last) != 1 || hasMore {
		t.Fatalf("last page: got %d events, hasMore=%v, want 1 event and no more", len(last), hasMore)
	}
}

func TestReadLastMissingFile(t *testing.T) {
	t.Parallel()

	events, hasMore, err := eventlog.ReadLast(filepath.Join(t.TempDir(), "missing.jsonl"), 10, 0, eventlog.FilterAll)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(events) != 0 || hasMore {
		t.Errorf("ReadLast() on missing file = %d events, hasMore=%v", len(events), hasMore)
	}
}
