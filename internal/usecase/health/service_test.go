package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

type slowChecker struct{}

func (slowChecker) HealthCheck(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks[ComponentStore] != CheckOK {
		t.Errorf("expected store %q, got %q", CheckOK, r.Checks[ComponentStore])
	}
	if r.Checks[ComponentEmbedding] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks[ComponentEmbedding])
	}
}

func TestCheck_StoreDownIsUnhealthy(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("conn refused")}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentStore] != CheckError {
		t.Errorf("expected store %q, got %q", CheckError, r.Checks[ComponentStore])
	}
}

func TestCheck_EmbeddingDownIsDegraded(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockEmbeddingChecker{err: errors.New("401")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
}

func TestCheck_BothDown(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("x")}, &mockEmbeddingChecker{err: errors.New("y")})
	if r := svc.Check(context.Background()); r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NilEmbedding(t *testing.T) {
	svc := New(&mockStorePinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks[ComponentEmbedding]; ok {
		t.Error("embedding check should be absent")
	}
}

func TestCheck_Timeout(t *testing.T) {
	svc := New(&mockStorePinger{}, slowChecker{})
	svc.timeout = 10 * time.Millisecond

	r := svc.Check(context.Background())
	if r.Checks[ComponentEmbedding] != CheckError {
		t.Errorf("expected timed out embedding check to fail")
	}
	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
}
