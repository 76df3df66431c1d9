package dynamic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/pkg/models"
)

// apiKeywords select which JSON responses are worth keeping
var apiKeywords = []string{"api", "graphql", "search", "business", "restaurant", "yelp", "opentable"}

// wantsResponse reports whether a response should be captured
func wantsResponse(mimeType, rawURL string) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if mt != "application/json" && mt != "text/json" && !strings.HasSuffix(mt, "+json") {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, k := range apiKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

type candidate struct {
	url      string
	mimeType string
	status   int
}

// recorder collects the document response and API bodies for one
// navigation
type recorder struct {
	maxCount int
	maxBody  int

	mu       sync.Mutex
	wg       sync.WaitGroup
	closed   bool
	pending  map[network.RequestID]candidate
	inflight int
	captures []models.NetworkCapture

	docSet     bool
	docStatus  int
	docURL     string
	docHeaders http.Header
}

func newRecorder(maxCount, maxBody int) *recorder {
	return &recorder{
		maxCount: maxCount,
		maxBody:  maxBody,
		pending:  make(map[network.RequestID]candidate),
	}
}

// listen returns a ListenTarget callback. Bodies are read under execCtx;
// nothing new is started once listenCtx is done.
func (r *recorder) listen(listenCtx, execCtx context.Context) func(ev interface{}) {
	return func(ev interface{}) {
		if listenCtx.Err() != nil {
			return
		}
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			if ev.Response == nil {
				return
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			if ev.Type == network.ResourceTypeDocument && !r.docSet {
				r.docSet = true
				r.docStatus = int(ev.Response.Status)
				r.docURL = ev.Response.URL
				r.docHeaders = toHeader(ev.Response.Headers)
				return
			}
			if r.maxCount > 0 && wantsResponse(ev.Response.MimeType, ev.Response.URL) {
				r.pending[ev.RequestID] = candidate{
					url:      ev.Response.URL,
					mimeType: ev.Response.MimeType,
					status:   int(ev.Response.Status),
				}
			}
		case *network.EventLoadingFinished:
			r.mu.Lock()
			c, ok := r.pending[ev.RequestID]
			delete(r.pending, ev.RequestID)
			if !ok || r.closed || len(r.captures)+r.inflight >= r.maxCount ||
				(r.maxBody > 0 && int(ev.EncodedDataLength) > r.maxBody) {
				r.mu.Unlock()
				return
			}
			r.inflight++
			r.wg.Add(1)
			r.mu.Unlock()
			go r.readBody(execCtx, ev.RequestID, c)
		}
	}
}

func (r *recorder) readBody(ctx context.Context, id network.RequestID, c candidate) {
	defer r.wg.Done()
	var body []byte
	var err error
	if t := chromedp.FromContext(ctx); t != nil && t.Target != nil {
		body, err = network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, t.Target))
	} else {
		err = fmt.Errorf("no browser target")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
	if err != nil {
		log.Debug().Err(err).Str("api_url", c.url).Msg("Failed to read captured response body")
		return
	}
	if r.maxBody > 0 && len(body) > r.maxBody {
		return
	}
	r.captures = append(r.captures, models.NetworkCapture{
		URL:      c.url,
		MIMEType: c.mimeType,
		Status:   c.status,
		Body:     body,
	})
}

// finish stops new body reads, waits for the running ones and returns
// what was captured
func (r *recorder) finish() []models.NetworkCapture {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.NetworkCapture(nil), r.captures...)
}

func (r *recorder) document() (status int, finalURL string, headers http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docStatus, r.docURL, r.docHeaders
}

func toHeader(h network.Headers) http.Header {
	out := http.Header{}
	for k, v := range h {
		switch v := v.(type) {
		case string:
			for _, line := range strings.Split(v, "\n") {
				out.Add(k, line)
			}
		case []interface{}:
			for _, e := range v {
				out.Add(k, fmt.Sprint(e))
			}
		default:
			out.Add(k, fmt.Sprint(v))
		}
	}
	return out
}
