// Package hybrid inspects fetched HTML to decide whether a page needs a
// browser and whether it is a bot challenge rather than content.
package hybrid

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signals summarizes what a static fetch returned
type Signals struct {
	Framework       string
	Scripts         int
	TextLength      int
	EmptyAppRoot    bool
	NoscriptWarning bool
}

var frameworkMarkers = []struct {
	name    string
	markers []string
}{
	{"Next.js", []string{"__next_data__", "/_next/static/"}},
	{"Nuxt", []string{"__nuxt__", "/_nuxt/"}},
	{"React", []string{"data-reactroot", "react-dom", "__react"}},
	{"Angular", []string{"ng-version", "ng-app", "ng-app="}},
	{"Vue", []string{"data-v-app", "vue.runtime", "__vue__"}},
	{"Svelte", []string{"svelte-", "__svelte"}},
	{"Ember", []string{"ember-application", "ember.js"}},
}

var appRoots = []string{"#root", "#app", "#__next", "#__nuxt", "[data-reactroot]", "app-root"}

// DetectFramework names the client-side framework a page was built with,
// or "" when none is recognized
func DetectFramework(html string) string {
	lower := strings.ToLower(html)
	for _, f := range frameworkMarkers {
		for _, m := range f.markers {
			if strings.Contains(lower, m) {
				return f.name
			}
		}
	}
	return ""
}

// Analyze collects rendering signals from raw HTML
func Analyze(html string) Signals {
	s := Signals{Framework: DetectFramework(html)}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return s
	}
	s.Scripts = doc.Find("script").Length()
	s.NoscriptWarning = strings.Contains(strings.ToLower(doc.Find("noscript").Text()), "javascript")

	for _, sel := range appRoots {
		root := doc.Find(sel).First()
		if root.Length() > 0 && strings.TrimSpace(root.Text()) == "" {
			s.EmptyAppRoot = true
			break
		}
	}

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	s.TextLength = len(strings.Join(strings.Fields(body.Text()), " "))
	return s
}

var challengePatterns = []struct {
	vendor string
	re     *regexp.Regexp
}{
	{"cloudflare", regexp.MustCompile(`(?i)cf-challenge|cf_chl_|challenge-platform|just a moment\.\.\.|checking your browser`)},
	{"perimeterx", regexp.MustCompile(`(?i)px-captcha|_pxhd|perimeterx`)},
	{"datadome", regexp.MustCompile(`(?i)datadome|dd_cookie_test`)},
	{"recaptcha", regexp.MustCompile(`(?i)g-recaptcha|recaptcha/api\.js`)},
	{"hcaptcha", regexp.MustCompile(`(?i)h-captcha|hcaptcha\.com`)},
	{"generic", regexp.MustCompile(`(?i)verify (?:that )?you are (?:a )?human|are you a robot|unusual traffic from your computer|access denied|request blocked`)},
}

// Challenge reports which bot wall html is, or "" for a normal page.
// Large pages that merely embed a captcha widget (a contact form) are not
// treated as challenges.
func Challenge(html string) string {
	if len(html) > 200_000 {
		return ""
	}
	for _, p := range challengePatterns {
		if p.re.MatchString(html) {
			if p.vendor == "recaptcha" || p.vendor == "hcaptcha" {
				if Analyze(html).TextLength > 1500 {
					continue
				}
			}
			return p.vendor
		}
	}
	return ""
}
