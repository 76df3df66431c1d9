package headers

import (
	"net/http"
	"reflect"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	in := []string{"user-agent: Bot", "Accept: text/html", "BadHeader", "X-Token: a:b"}
	out := ParseHeaders(in)
	expected := map[string]string{"User-Agent": "Bot", "Accept": "text/html", "X-Token": "a:b"}
	if !reflect.DeepEqual(out, expected) {
		t.Fatalf("unexpected parse result: %#v", out)
	}
}

func TestParseStrict(t *testing.T) {
	if _, err := ParseStrict([]string{"Accept: */*", "nocolon"}); err == nil {
		t.Error("expected an error for a header without a colon")
	}
	if _, err := ParseStrict([]string{": empty name"}); err == nil {
		t.Error("expected an error for an empty header name")
	}
	m, err := ParseStrict([]string{"Accept: */*"})
	if err != nil || m["Accept"] != "*/*" {
		t.Fatalf("unexpected result %v %v", m, err)
	}
}

func TestApply(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	req.Header.Set("Accept", "text/html")
	Apply(req, map[string]string{"Accept": "application/json", "X-Test": "1"})
	if req.Header.Get("Accept") != "application/json" || req.Header.Get("X-Test") != "1" {
		t.Fatalf("headers not applied: %v", req.Header)
	}
}
