package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestFieldConstructors(t *testing.T) {
	if f := String("file", "a.pdf"); f.Key() != "file" || f.Value() != "a.pdf" {
		t.Fatalf("string field = %v %v", f.Key(), f.Value())
	}
	if f := Int("pages", 3); f.Value() != 3 {
		t.Fatalf("int field = %v", f.Value())
	}
	if f := Int64("bytes", 9); f.Value() != int64(9) {
		t.Fatalf("int64 field = %v", f.Value())
	}
	err := errors.New("nope")
	if f := Error("cause", err); f.Value() != err {
		t.Fatalf("error field = %v", f.Value())
	}
}

func TestSlogBridgeEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	log := NewSlogLogger(base)

	log.Info("document parsed", String("file", "a.pdf"), Int("objects", 12))
	out := buf.String()
	if !strings.Contains(out, "document parsed") || !strings.Contains(out, "file=a.pdf") || !strings.Contains(out, "objects=12") {
		t.Fatalf("unexpected log line: %q", out)
	}

	buf.Reset()
	log.With(String("component", "writer")).Warn("slow write")
	if !strings.Contains(buf.String(), "component=writer") {
		t.Fatalf("With fields lost: %q", buf.String())
	}
}

func TestNopLoggerDoesNothing(t *testing.T) {
	var log Logger = NopLogger{}
	log.Debug("x")
	log.Info("x", Int("n", 1))
	if _, ok := log.With(String("a", "b")).(NopLogger); !ok {
		t.Fatalf("With should stay a NopLogger")
	}
}
