package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithAttrsMergesByKey(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.String("case_id", "c1"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("Attrs() = %v", attrs)
	}
	if attrs[0].Value.String() != "b" || attrs[1].Value.String() != "c1" {
		t.Fatalf("Attrs() = %v", attrs)
	}
}

func TestNewJSONLoggerWritesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "json", "debug")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), logger)
	ctx = WithAttrs(ctx, slog.String("component", "test"))
	Debug(ctx, "hello", slog.String("case_id", "c1"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "hello" || line["component"] != "test" || line["case_id"] != "c1" {
		t.Fatalf("log line = %v", line)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "xml", "info"); err == nil {
		t.Fatalf("New() expected error for format")
	}
	if _, err := New(&bytes.Buffer{}, "text", "loud"); err == nil {
		t.Fatalf("New() expected error for level")
	}
}

func TestWithCaseAndRequestID(t *testing.T) {
	ctx := WithCase(context.Background(), "usecase.casework", "c9")
	ctx = WithRequestID(ctx, "")
	ctx = WithRequestID(ctx, "req-1")

	got := map[string]string{}
	for _, attr := range Attrs(ctx) {
		got[attr.Key] = attr.Value.String()
	}
	if len(got) != 3 || got["component"] != "usecase.casework" || got["case_id"] != "c9" || got["request_id"] != "req-1" {
		t.Fatalf("Attrs() = %v", got)
	}
}
