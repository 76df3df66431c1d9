package robots

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/harvest/internal/engine"
)

func robotsServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestCheckDisallowed(t *testing.T) {
	server, _ := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\nDisallow: /*?sort=\n")
	c := New(server.Client(), "harvest", "harvest-test", time.Hour)
	ctx := context.Background()

	err := c.Check(ctx, server.URL+"/private/menu")
	if !errors.Is(err, engine.ErrRobotsDisallow) {
		t.Fatalf("expected robots block, got %v", err)
	}
	if engine.KindOf(err) != engine.KindFetch {
		t.Errorf("expected a fetch error, got %s", engine.KindOf(err))
	}
	if engine.IsRetryable(err) {
		t.Error("a robots block must not be retried")
	}

	if err := c.Check(ctx, server.URL+"/r/cafe-uno"); err != nil {
		t.Errorf("allowed path was blocked: %v", err)
	}
	if err := c.Check(ctx, server.URL+"/search?sort=price"); !errors.Is(err, engine.ErrRobotsDisallow) {
		t.Errorf("query rules should apply, got %v", err)
	}
}

func TestCheckAgentGroup(t *testing.T) {
	server, _ := robotsServer(t, http.StatusOK, "User-agent: harvest\nDisallow: /\n\nUser-agent: *\nAllow: /\n")

	if err := New(server.Client(), "harvest", "", time.Hour).Check(context.Background(), server.URL+"/"); err == nil {
		t.Error("expected the harvest group to block everything")
	}
	if err := New(server.Client(), "otherbot", "", time.Hour).Check(context.Background(), server.URL+"/"); err != nil {
		t.Errorf("other agents fall back to *, got %v", err)
	}
}

func TestCheckCachesPerHost(t *testing.T) {
	server, hits := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\n")
	c := New(server.Client(), "harvest", "", time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_ = c.Check(context.Background(), fmt.Sprintf("%s/page/%d", server.URL, i))
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("expected one robots.txt fetch, got %d", got)
	}

	now = now.Add(2 * time.Hour)
	_ = c.Check(context.Background(), server.URL+"/page/9")
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Errorf("expected a refetch after the TTL, got %d fetches", got)
	}
}

func TestCheckMissingFileAllows(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		server, _ := robotsServer(t, status, "User-agent: *\nDisallow: /\n")
		c := New(server.Client(), "harvest", "", time.Hour)
		if err := c.Check(context.Background(), server.URL+"/anything"); err != nil {
			t.Errorf("status %d: expected allow, got %v", status, err)
		}
	}

	c := New(nil, "harvest", "", time.Hour)
	if err := c.Check(context.Background(), "markup:job-1"); err != nil {
		t.Errorf("non-HTTP targets are never checked, got %v", err)
	}
}
