package dynamic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/internal/engine"
)

func TestWantsResponse(t *testing.T) {
	cases := []struct {
		mime, url string
		want      bool
	}{
		{"application/json", "https://www.yelp.com/biz_api/search?q=x", true},
		{"application/ld+json; charset=utf-8", "https://example.com/api/place", true},
		{"text/json", "https://www.opentable.com/dapi/restaurant/1", true},
		{"application/json", "https://cdn.example.com/i18n/strings", false},
		{"text/html", "https://example.com/api/page", false},
		{"application/javascript", "https://example.com/search.js", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, wantsResponse(tc.mime, tc.url), "%s %s", tc.mime, tc.url)
	}
}

func TestToHeader(t *testing.T) {
	h := toHeader(network.Headers{
		"content-type": "text/html",
		"set-cookie":   "a=1\nb=2",
		"x-count":      3,
	})
	assert.Equal(t, "text/html", h.Get("Content-Type"))
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
	assert.Equal(t, "3", h.Get("X-Count"))
}

func apiResponse(id network.RequestID) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: id,
		Type:      network.ResourceTypeXHR,
		Response: &network.Response{
			URL:      "https://example.com/api/places",
			MimeType: "application/json",
			Status:   200,
		},
	}
}

func TestRecorderIgnoresEventsAfterFinish(t *testing.T) {
	r := newRecorder(5, 0)
	listen := r.listen(context.Background(), context.Background())

	listen(apiResponse("late"))
	assert.Empty(t, r.finish())

	listen(&network.EventLoadingFinished{RequestID: "late"})
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Zero(t, r.inflight, "no body read may start after finish")
}

func TestRecorderFinishConcurrentWithEvents(t *testing.T) {
	r := newRecorder(1000, 0)
	listen := r.listen(context.Background(), context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			id := network.RequestID(fmt.Sprintf("req-%d", i))
			listen(apiResponse(id))
			listen(&network.EventLoadingFinished{RequestID: id})
		}
	}()

	// Bodies cannot be read without a browser target, so nothing is captured.
	assert.Empty(t, r.finish())
	<-done
	assert.Empty(t, r.finish())
}

func TestCookieParams(t *testing.T) {
	s := &auth.SessionData{
		URL: "https://www.opentable.com/",
		Cookies: []auth.Cookie{
			{Name: "sid", Value: "1", Domain: ".opentable.com", Path: "/", Secure: true, SameSite: "Lax", Expires: 2e9},
			{Name: "hostonly", Value: "2"},
		},
	}
	params := cookieParams(s)
	require.Len(t, params, 2)
	assert.Equal(t, ".opentable.com", params[0].Domain)
	assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)
	require.NotNil(t, params[0].Expires)
	assert.Equal(t, "https://www.opentable.com/", params[1].URL)

	s.URL = ""
	assert.Len(t, cookieParams(s), 1, "a cookie without domain or URL cannot be placed")
}

func TestDefaults(t *testing.T) {
	m := NewManager(Options{}, nil, nil)
	assert.Equal(t, 1920, m.opts.ViewportWidth)
	assert.Equal(t, "en-US", m.opts.Locale)
	assert.Equal(t, DefaultWaitPolicy(), m.opts.Wait)
	assert.Equal(t, 0, m.Open())
}

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	if FindChrome("") == "" {
		t.Skip("Chrome not available")
	}
}

func testManager() *Manager {
	return NewManager(Options{
		Headless:           true,
		PageTimeout:        15 * time.Second,
		MaxNetworkCaptures: 5,
		MaxNetworkBody:     1 << 20,
		Wait: WaitPolicy{
			InitialSettle: 300 * time.Millisecond,
			Scrolls:       1,
			ScrollSettle:  100 * time.Millisecond,
			MaxWait:       2 * time.Second,
		},
	}, nil, nil)
}

func TestSessionRendersAndCaptures(t *testing.T) {
	requireChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"business":{"name":"Cafe Uno","rating":4.5}}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Shell</title></head><body><div id="root"></div>
<script>
fetch('/api/search').then(r => r.json()).then(d => {
  document.getElementById('root').innerHTML = '<h1>' + d.business.name + '</h1>';
});
</script></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	m := testManager()
	defer m.Close()

	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Open())

	capture, err := s.Fetch(context.Background(), server.URL+"/")
	require.NoError(t, err)
	assert.True(t, capture.Rendered)
	assert.Equal(t, http.StatusOK, capture.StatusCode)
	assert.Contains(t, capture.HTML, "<h1>Cafe Uno</h1>")
	require.Len(t, capture.Network, 1)
	assert.Contains(t, string(capture.Network[0].Body), "Cafe Uno")
	assert.Equal(t, 0, s.(*Session).Pages(), "tab must be closed after Fetch")

	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.Equal(t, 0, m.Open())

	_, err = s.Fetch(context.Background(), server.URL+"/")
	assert.True(t, errors.Is(err, engine.ErrSessionReleased))
}

func TestNavigateFailuresKeepSession(t *testing.T) {
	requireChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	mux.HandleFunc("/missing", http.NotFound)
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>fine</p></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	m := testManager()
	defer m.Close()
	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	session := s.(*Session)

	page, err := session.NewPage(context.Background())
	require.NoError(t, err)
	_, err = page.Navigate(context.Background(), server.URL+"/slow", 500*time.Millisecond)
	assert.Equal(t, engine.KindTimeout, engine.KindOf(err))
	assert.True(t, engine.IsRetryable(err))
	page.Close()

	_, err = s.Fetch(context.Background(), server.URL+"/missing")
	var ee *engine.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusNotFound, ee.GetStatusCode())

	capture, err := s.Fetch(context.Background(), server.URL+"/ok")
	require.NoError(t, err, "session must survive page failures")
	assert.Contains(t, capture.HTML, "fine")

	require.NoError(t, s.Release())
	assert.Equal(t, 0, m.Open())
}
