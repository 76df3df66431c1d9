package output

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const noiseSelector = "script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas, template"

const chromeSelector = "nav, header, footer, aside, [role='navigation'], [role='banner'], [role='contentinfo'], [aria-hidden='true']"

var keptAttrs = map[string][]string{
	"a":   {"href", "title"},
	"img": {"src", "alt", "title"},
	"td":  {"colspan", "rowspan"},
	"th":  {"colspan", "rowspan"},
}

// CleanHTML strips scripts, styles, form controls and every attribute a
// text converter has no use for. With dropChrome the page navigation,
// header and footer go too.
func CleanHTML(htmlContent string, dropChrome bool) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find(noiseSelector).Remove()
	if dropChrome {
		doc.Find(chromeSelector).Remove()
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			node.Attr = filterAttrs(node)
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func filterAttrs(node *html.Node) []html.Attribute {
	allowed := keptAttrs[node.Data]
	if len(allowed) == 0 {
		return nil
	}
	var kept []html.Attribute
	for _, attr := range node.Attr {
		for _, name := range allowed {
			if attr.Key == name {
				kept = append(kept, attr)
				break
			}
		}
	}
	return kept
}
