package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/swrcache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core), "store")

	l.Warn("fetch failed", swrcache.Fields{"key": "kpi", "err": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel || e.Message != "fetch failed" || e.LoggerName != "store" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	ctx := e.ContextMap()
	if ctx["key"] != "kpi" || ctx["err"] != "boom" {
		t.Fatalf("fields = %v", ctx)
	}
}
