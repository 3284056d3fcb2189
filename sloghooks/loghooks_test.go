package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactsKeys(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), Options{})

	h.FetchFailed("points-balance?userId=42", 0, errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "swrcache.fetch_failed") {
		t.Fatalf("missing event name: %q", out)
	}
	if strings.Contains(out, "userId=42") {
		t.Fatalf("key not redacted: %q", out)
	}
}

func TestSamplesSelfHeal(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), Options{
		SelfHealEvery: 3,
		Redact:        func(k string) string { return k },
	})
	for i := 0; i < 6; i++ {
		h.SnapshotSelfHeal("snap:ns:kpi", "corrupt")
	}
	if n := strings.Count(buf.String(), "snapshot_self_heal"); n != 2 {
		t.Fatalf("logged %d self-heals, want 2", n)
	}
}
