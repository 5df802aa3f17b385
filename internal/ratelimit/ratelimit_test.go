package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestGlobal_FloorBlocksImmediateResend(t *testing.T) {
	g := NewGlobal(time.Second)
	now := time.Now()
	if !g.CanSend(now) {
		t.Fatalf("first send should be allowed")
	}
	g.RecordSend(now)
	if g.CanSend(now.Add(100 * time.Millisecond)) {
		t.Fatalf("send within floor should be blocked")
	}
	if !g.CanSend(now.Add(2 * time.Second)) {
		t.Fatalf("send after floor should be allowed")
	}
}

func TestTX_WaitForTXHonorsFloor(t *testing.T) {
	tx := NewTX(30 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	if err := tx.WaitForTX(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := tx.WaitForTX(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("second TX should have waited for the floor, elapsed=%v", elapsed)
	}
}

func TestTX_WaitForTXRespectsCancellation(t *testing.T) {
	tx := NewTX(time.Hour)
	ctx := context.Background()
	if err := tx.WaitForTX(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tx.WaitForTX(cancelled); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestPerUser_ThrottlesWithinInterval(t *testing.T) {
	p := NewPerUser(time.Second, 10)
	now := time.Now()
	if !p.Allow("alice", now) {
		t.Fatalf("first send should be allowed")
	}
	if p.Allow("alice", now.Add(100*time.Millisecond)) {
		t.Fatalf("second send within interval should be throttled")
	}
	if !p.Allow("bob", now) {
		t.Fatalf("different user should be unaffected")
	}
}

func TestPerUser_LRUEvictsOldest(t *testing.T) {
	p := NewPerUser(0, 2)
	now := time.Now()
	p.Allow("a", now)
	p.Allow("b", now)
	p.Allow("c", now)
	if p.Len() != 2 {
		t.Fatalf("expected LRU cap of 2, got %d", p.Len())
	}
}

func TestNominatim_SerializesCallsAtFloor(t *testing.T) {
	n := NewNominatim(20 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	if err := n.WaitAndRequest(ctx); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := n.WaitAndRequest(ctx); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected requests to serialize at the floor, elapsed=%v", elapsed)
	}
}

func TestStats_ThrottleRate(t *testing.T) {
	s := Stats{TotalSends: 3, TotalThrottled: 1}
	if rate := s.ThrottleRate(); rate < 0.24 || rate > 0.26 {
		t.Fatalf("throttle rate = %v, want ~0.25", rate)
	}
}
