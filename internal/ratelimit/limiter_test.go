package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowPerHost(t *testing.T) {
	l := NewDomainLimiter(1, 1)

	if !l.Allow("https://a.example/1") {
		t.Fatal("first request to a host should pass")
	}
	if l.Allow("https://www.a.example/2") {
		t.Error("www. shares the bare host's bucket")
	}
	if !l.Allow("https://b.example/") {
		t.Error("other hosts have their own bucket")
	}
	if !l.Allow("::bad") {
		t.Error("unparseable URLs are not limited")
	}
	if got := l.Hosts(); got != 2 {
		t.Errorf("expected 2 buckets, got %d", got)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := NewDomainLimiter(0.1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "https://slow.example/"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := l.Wait(ctx, "https://slow.example/"); err == nil {
		t.Error("second wait should fail: the next token is 10s away")
	}
}

func TestSetLimit(t *testing.T) {
	l := NewDomainLimiter(0.1, 1)
	l.SetLimit("WWW.fast.example", 1000, 5)
	for i := 0; i < 5; i++ {
		if !l.Allow("https://fast.example/") {
			t.Fatalf("request %d should pass with burst 5", i)
		}
	}
}
