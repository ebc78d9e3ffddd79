package application

import (
	"context"
	"testing"
	"time"

	"deliveryman-auth/auth/domain"
)

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeLimiterStore struct {
	lim  domain.Limiter
	keys []domain.ClientKey
}

func (s *fakeLimiterStore) Get(k domain.ClientKey) domain.Limiter {
	s.keys = append(s.keys, k)
	return s.lim
}

func TestThrottle_Decide_AllowsWhenNoStore(t *testing.T) {
	dec := Throttle{}.Decide("10.0.0.1")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestThrottle_Decide_UsesClientKey(t *testing.T) {
	store := &fakeLimiterStore{lim: fakeLimiter{allow: true}}
	dec := Throttle{Store: store}.Decide("10.0.0.1")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if len(store.keys) != 1 || store.keys[0] != "10.0.0.1" {
		t.Fatalf("expected store lookup by client key, got %v", store.keys)
	}
}

func TestThrottle_Decide_BlocksWithDefaultRetryAfter(t *testing.T) {
	dec := Throttle{Store: &fakeLimiterStore{lim: fakeLimiter{allow: false}}}.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestThrottle_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	dec := Throttle{Store: &fakeLimiterStore{lim: fakeLimiter{allow: false}}, RetryAfter: 30 * time.Second}.Decide("k")
	if dec.Allowed || dec.RetryAfter != 30*time.Second {
		t.Fatalf("expected blocked with RetryAfter=30s, got %+v", dec)
	}
}

type blockingPool struct{}

func (blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestAdmission_Acquire_AllowsWhenNoPool(t *testing.T) {
	release, ok := Admission{}.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestAdmission_Acquire_UsesTimeout(t *testing.T) {
	a := Admission{Pool: blockingPool{}, AcquireTimeout: 10 * time.Millisecond}
	if _, ok := a.Acquire(context.Background()); ok {
		t.Fatalf("expected timeout and ok=false")
	}
}

func TestAdmission_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	if _, ok := (Admission{Pool: pool}).Acquire(context.Background()); !ok {
		t.Fatalf("expected ok")
	}
	if pool.acquired != 1 {
		t.Fatalf("expected pool Acquire to be called once, got %d", pool.acquired)
	}
}
