package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env, "")
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		_ = l.Sync()
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("staging", ""); err == nil {
		t.Fatal("expected error for unknown env")
	}
}

func TestNewLogger_Level(t *testing.T) {
	l, err := NewLogger("prod", "warn", WithStderr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected no-op logger")
	}
}

func TestWith_AddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("request_id", "abc"))

	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "abc" {
		t.Errorf("field missing: %v", entries[0].ContextMap())
	}
}

func TestFromContextOr(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fallback := zap.New(core)

	FromContextOr(context.Background(), fallback).Info("seed")
	if logs.Len() != 1 {
		t.Fatalf("expected the fallback to log, got %d entries", logs.Len())
	}

	reqCore, reqLogs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(reqCore))
	FromContextOr(ctx, fallback).Info("request")
	if reqLogs.Len() != 1 || logs.Len() != 1 {
		t.Errorf("expected the request logger to win: request=%d fallback=%d", reqLogs.Len(), logs.Len())
	}
}
