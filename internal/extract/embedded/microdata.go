package embedded

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	textutil "github.com/law-makers/harvest/internal/utils/text"
)

// Microdata returns one object per top-level itemscope. Nested scopes that
// carry an itemprop become nested objects of their parent.
func Microdata(doc *goquery.Document) []any {
	var out []any
	doc.Find("[itemscope]").Not("[itemprop]").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			if item := microItem(n); len(item) > 0 {
				out = append(out, item)
			}
		}
	})
	return out
}

func microItem(n *html.Node) map[string]any {
	item := map[string]any{}
	if t := nodeAttr(n, "itemtype"); t != "" {
		item["@type"] = t[strings.LastIndex(t, "/")+1:]
	}
	walkProps(n, item)
	if len(item) == 1 {
		if _, onlyType := item["@type"]; onlyType {
			return nil
		}
	}
	return item
}

func walkProps(n *html.Node, item map[string]any) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		_, scoped := lookupAttr(c, "itemscope")
		if prop := nodeAttr(c, "itemprop"); prop != "" {
			var v any
			if scoped {
				if sub := microItem(c); len(sub) > 0 {
					v = sub
				}
			} else {
				v = propValue(c)
			}
			// itemprop may list several names for one value
			for _, name := range strings.Fields(prop) {
				addProp(item, name, v)
			}
		}
		if !scoped {
			walkProps(c, item)
		}
	}
}

func propValue(n *html.Node) any {
	var v string
	switch n.Data {
	case "meta":
		v = nodeAttr(n, "content")
	case "a", "link", "area":
		v = nodeAttr(n, "href")
	case "img", "audio", "video", "source", "embed", "iframe":
		v = nodeAttr(n, "src")
	case "time":
		v = nodeAttr(n, "datetime")
	case "data", "meter":
		v = nodeAttr(n, "value")
	}
	if v == "" {
		v = nodeAttr(n, "content")
	}
	if v == "" {
		v = nodeText(n)
	}
	v = textutil.Normalize(v)
	if v == "" {
		return nil
	}
	return v
}

func addProp(item map[string]any, name string, v any) {
	if v == nil {
		return
	}
	existing, ok := item[name]
	if !ok {
		item[name] = v
		return
	}
	if list, isList := existing.([]any); isList {
		item[name] = append(list, v)
		return
	}
	item[name] = []any{existing, v}
}

func nodeAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return strings.TrimSpace(v)
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
