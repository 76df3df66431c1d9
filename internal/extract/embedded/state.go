package embedded

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// StateVariables are the window globals single-page apps hydrate from
var StateVariables = []string{
	"__NUXT__",
	"__PRELOADED_STATE__",
	"__INITIAL_STATE__",
	"__APOLLO_STATE__",
	"__REDUX_STATE__",
	"pageData",
	"initialData",
}

const scriptBudget = 250 * time.Millisecond

const maxScriptSize = 2 << 20

// State evaluates the inline scripts that assign a known state variable
// in a sandboxed VM and returns each variable that ends up set, as plain
// JSON values
func State(doc *goquery.Document, pageURL string) map[string]any {
	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if typ, ok := s.Attr("type"); ok && typ != "" && !strings.Contains(typ, "javascript") && typ != "module" {
			return
		}
		body := s.Text()
		if len(body) > maxScriptSize || !mentionsState(body) {
			return
		}
		scripts = append(scripts, body)
	})
	if len(scripts) == 0 {
		return nil
	}

	vm := newSandbox(pageURL)
	for _, src := range scripts {
		runBounded(vm, src)
	}

	out := map[string]any{}
	for _, name := range StateVariables {
		val := vm.Get(name)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			continue
		}
		if v, ok := toJSON(val.Export()); ok {
			out[name] = v
		}
	}
	return out
}

func mentionsState(body string) bool {
	for _, name := range StateVariables {
		if strings.Contains(body, name) {
			return true
		}
	}
	return false
}

// newSandbox builds a VM with just enough browser globals for hydration
// scripts to assign their state
func newSandbox(pageURL string) *goja.Runtime {
	vm := goja.New()
	global := vm.GlobalObject()
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }

	location := map[string]any{"href": pageURL}
	_ = vm.Set("window", global)
	_ = vm.Set("self", global)
	_ = vm.Set("globalThis", global)
	_ = vm.Set("location", location)
	_ = vm.Set("document", map[string]any{
		"location":         location,
		"addEventListener": noop,
		"querySelector":    func(goja.FunctionCall) goja.Value { return goja.Null() },
		"getElementById":   func(goja.FunctionCall) goja.Value { return goja.Null() },
	})
	_ = vm.Set("navigator", map[string]any{"userAgent": "Mozilla/5.0", "language": "en-US"})
	_ = vm.Set("console", map[string]any{"log": noop, "warn": noop, "error": noop, "info": noop, "debug": noop})
	_ = vm.Set("addEventListener", noop)
	_ = vm.Set("setTimeout", noop)
	_ = vm.Set("setInterval", noop)
	return vm
}

func runBounded(vm *goja.Runtime, src string) {
	timer := time.AfterFunc(scriptBudget, func() {
		vm.Interrupt("script budget exceeded")
	})
	defer func() {
		timer.Stop()
		vm.ClearInterrupt()
		if r := recover(); r != nil {
			log.Debug().Interface("panic", r).Msg("Inline script panicked")
		}
	}()

	if _, err := vm.RunString(src); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			log.Debug().Msg("Inline script interrupted")
			return
		}
		// Most scripts touch DOM APIs the sandbox lacks; assignments made
		// before the failure are still visible
		log.Debug().Err(err).Msg("Inline script failed")
	}
}

// toJSON normalizes exported VM values to encoding/json shapes
func toJSON(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}
