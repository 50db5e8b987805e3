package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

type mockCounters struct {
	getFn  func(ctx context.Context, key string) ([]byte, error)
	incrFn func(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}

func (m *mockCounters) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockCounters) IncrCounter(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	if m.incrFn != nil {
		return m.incrFn(ctx, key, val, ttl)
	}
	return val, nil
}

func TestAdd_ReturnsTotal(t *testing.T) {
	var gotKey string
	var gotTTL time.Duration
	kv := &mockCounters{incrFn: func(_ context.Context, key string, val int64, ttl time.Duration) (int64, error) {
		gotKey, gotTTL = key, ttl
		return 1000 + val, nil
	}}

	total, err := New(kv).Add(context.Background(), "cv:budget:openai:daily:2024-06-15", 42, 48*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1042 {
		t.Errorf("total = %d, want 1042", total)
	}
	if gotKey != "cv:budget:openai:daily:2024-06-15" || gotTTL != 48*time.Hour {
		t.Errorf("key=%s ttl=%v", gotKey, gotTTL)
	}
}

func TestAdd_Errors(t *testing.T) {
	kv := &mockCounters{incrFn: func(context.Context, string, int64, time.Duration) (int64, error) {
		return 0, errors.New("down")
	}}
	if _, err := New(kv).Add(context.Background(), "k", 1, time.Hour); err == nil {
		t.Error("expected store error")
	}

	called := false
	kv = &mockCounters{incrFn: func(context.Context, string, int64, time.Duration) (int64, error) {
		called = true
		return 0, nil
	}}
	if _, err := New(kv).Add(context.Background(), "k", -5, time.Hour); err == nil {
		t.Error("expected error for negative tokens")
	}
	if called {
		t.Error("negative tokens must not reach the store")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		err     error
		want    int64
		wantErr bool
	}{
		{name: "value", data: []byte("1500"), want: 1500},
		{name: "missing", err: db.ErrKeyNotFound, want: 0},
		{name: "store error", err: errors.New("timeout"), wantErr: true},
		{name: "garbage", data: []byte("abc"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := &mockCounters{getFn: func(context.Context, string) ([]byte, error) { return tt.data, tt.err }}
			got, err := New(kv).Get(context.Background(), "k")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}
