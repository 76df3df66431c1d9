// Package generic extracts the page-level fields any HTML document has:
// title, text, headings, sections, lists, tables, links, images and meta.
package generic

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/utils/output"
	textutil "github.com/law-makers/harvest/internal/utils/text"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

const (
	maxHeadings    = 20
	maxLists       = 10
	maxTables      = 5
	maxCodeBlocks  = 10
	maxLinks       = 100
	maxImages      = 50
	maxSections    = 30
	maxSectionText = 2000
	minCodeLength  = 10
)

var mainSelectors = []string{"article", "main", "[role='main']", ".content", "#content", ".main-content"}

// Extract builds the generic record of a capture
func Extract(capture *models.PageCapture) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(capture.HTML))
	if err != nil {
		return nil, err
	}
	base := capture.Identity()

	meta := Meta(doc)
	out := map[string]any{}
	set(out, "title", textutil.Normalize(textutil.FirstNonEmpty(capture.Title, doc.Find("title").First().Text(), doc.Find("h1").First().Text())))
	set(out, "description", textutil.FirstNonEmpty(meta["description"], meta["og:description"], meta["twitter:description"]))
	set(out, "meta", toAny(meta))
	set(out, "page_type", PageType(doc, meta))
	set(out, "language", textutil.FirstNonEmpty(attr(doc.Find("html"), "lang"), meta["og:locale"], meta["content-language"]))
	if canonical := attr(doc.Find("link[rel='canonical']"), "href"); canonical != "" {
		out["canonical_url"] = urlutil.ResolveURL(base, canonical)
	}

	// Structured blocks are read before scripts and styles are dropped
	set(out, "links", links(doc, base))
	set(out, "images", images(doc, base))

	doc.Find("script, style, noscript, template, svg").Remove()

	fullText := textutil.Normalize(doc.Find("body").Text())
	set(out, "full_text", textutil.Truncate(fullText, textutil.MaxFullText))
	out["word_count"] = textutil.WordCount(fullText)

	mainText, mainHTML := mainContent(doc, capture.HTML, base)
	set(out, "main_content", textutil.Truncate(mainText, textutil.MaxMainContent))
	if mainHTML != "" {
		if markdown, err := output.ToMarkdown(base, mainHTML); err == nil {
			set(out, "markdown", textutil.Truncate(markdown, textutil.MaxMainContent))
		} else {
			log.Debug().Err(err).Str("url", base).Msg("Markdown conversion failed")
		}
	}

	set(out, "headings", headings(doc))
	set(out, "sections", Sections(doc))
	set(out, "lists", lists(doc))
	set(out, "tables", tables(doc))
	set(out, "code_blocks", codeBlocks(doc))
	return out, nil
}

// Meta collects meta tags keyed by name, property or itemprop
func Meta(doc *goquery.Document) map[string]string {
	meta := map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := textutil.Normalize(attr(s, "content"))
		if content == "" {
			return
		}
		for _, key := range []string{"name", "property", "itemprop", "http-equiv"} {
			if name := strings.ToLower(strings.TrimSpace(attr(s, key))); name != "" {
				if _, exists := meta[name]; !exists {
					meta[name] = content
				}
				return
			}
		}
	})
	return meta
}

var (
	productClass = regexp.MustCompile(`(?i)product|item`)
	postClass    = regexp.MustCompile(`(?i)\bpost\b|entry`)
)

// PageType guesses what kind of page a document is
func PageType(doc *goquery.Document, meta map[string]string) string {
	if og := strings.ToLower(meta["og:type"]); og != "" {
		return og
	}
	if itemtype := attr(doc.Find("[itemtype]").First(), "itemtype"); itemtype != "" {
		switch {
		case strings.Contains(itemtype, "Restaurant"), strings.Contains(itemtype, "LocalBusiness"):
			return "business"
		case strings.Contains(itemtype, "Article"):
			return "article"
		case strings.Contains(itemtype, "Product"):
			return "product"
		case strings.Contains(itemtype, "Person"):
			return "profile"
		}
	}
	switch {
	case doc.Find("article").Length() > 0:
		return "article"
	case hasClass(doc, productClass):
		return "product"
	case doc.Find("time").Length() > 0 || hasClass(doc, postClass):
		return "blog"
	case doc.Find("form").Length() > 0:
		return "form"
	}
	return "generic"
}

func hasClass(doc *goquery.Document, re *regexp.Regexp) bool {
	found := false
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = re.MatchString(attr(s, "class"))
		return !found
	})
	return found
}

// Sections groups the content following each h2-h4 heading until the next
// heading of the same or a higher level, in document order
func Sections(doc *goquery.Document) map[string]any {
	out := map[string]any{}
	doc.Find("h2, h3, h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		title := textutil.Normalize(h.Text())
		if title == "" || len(title) >= 200 {
			return true
		}
		level := headingLevel(goquery.NodeName(h))

		var texts []string
		var sectionLists []any
		var sectionLinks []any
		for sib := h.Next(); sib.Length() > 0; sib = sib.Next() {
			if l := headingLevel(goquery.NodeName(sib)); l > 0 && l <= level {
				break
			}
			if t := textutil.Normalize(sib.Text()); len(t) > 3 {
				texts = append(texts, t)
			}
			sib.Find("ul, ol").AddSelection(sib.Filter("ul, ol")).Each(func(_ int, list *goquery.Selection) {
				if items := listItems(list); len(items) > 0 {
					sectionLists = append(sectionLists, items)
				}
			})
			sib.Find("a[href]").AddSelection(sib.Filter("a[href]")).Each(func(_ int, a *goquery.Selection) {
				if text := textutil.Normalize(a.Text()); text != "" {
					sectionLinks = append(sectionLinks, map[string]any{"text": text, "url": attr(a, "href")})
				}
			})
		}
		if len(texts) == 0 && len(sectionLists) == 0 && len(sectionLinks) == 0 {
			return true
		}

		section := map[string]any{"title": title}
		set(section, "text", textutil.Truncate(strings.Join(texts, " "), maxSectionText))
		set(section, "lists", sectionLists)
		set(section, "links", sectionLinks)
		if _, dup := out[title]; !dup {
			out[title] = section
		}
		return len(out) < maxSections
	})
	return out
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func mainContent(doc *goquery.Document, rawHTML, base string) (string, string) {
	for _, sel := range mainSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if text := textutil.Normalize(s.Text()); text != "" {
			html, _ := goquery.OuterHtml(s)
			return text, html
		}
	}

	if u, err := url.Parse(base); err == nil {
		article, err := readability.FromReader(strings.NewReader(rawHTML), u)
		if err == nil {
			if text := textutil.Normalize(article.TextContent); text != "" {
				return text, article.Content
			}
		}
	}

	body := doc.Find("body")
	html, _ := body.Html()
	return textutil.Normalize(body.Text()), html
}

func headings(doc *goquery.Document) map[string]any {
	out := map[string]any{}
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		var list []any
		doc.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := textutil.Normalize(s.Text()); t != "" {
				list = append(list, t)
			}
			return len(list) < maxHeadings
		})
		if len(list) > 0 {
			out[tag] = list
		}
	}
	return out
}

func lists(doc *goquery.Document) []any {
	var out []any
	doc.Find("ul, ol").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if items := listItems(s); len(items) > 0 {
			out = append(out, items)
		}
		return len(out) < maxLists
	})
	return out
}

func listItems(list *goquery.Selection) []any {
	var items []any
	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		if t := textutil.Normalize(li.Text()); t != "" {
			items = append(items, t)
		}
	})
	return items
}

func tables(doc *goquery.Document) []any {
	var out []any
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		var rows []any
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []any
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, textutil.Normalize(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) > 0 {
			out = append(out, rows)
		}
		return len(out) < maxTables
	})
	return out
}

func codeBlocks(doc *goquery.Document) []any {
	var out []any
	doc.Find("pre, code").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "code" && s.ParentFiltered("pre").Length() > 0 {
			return true
		}
		text := strings.TrimSpace(s.Text())
		if len(text) > minCodeLength {
			out = append(out, textutil.Truncate(text, textutil.MaxCodeBlock))
		}
		return len(out) < maxCodeBlocks
	})
	return out
}

func links(doc *goquery.Document, base string) []any {
	var out []any
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(attr(s, "href"))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		link := map[string]any{"href": urlutil.ResolveURL(base, href)}
		set(link, "text", textutil.Normalize(s.Text()))
		set(link, "title", attr(s, "title"))
		out = append(out, link)
		return len(out) < maxLinks
	})
	return out
}

func images(doc *goquery.Document, base string) []any {
	var out []any
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := textutil.FirstNonEmpty(attr(s, "src"), attr(s, "data-src"), attr(s, "data-lazy-src"))
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		img := map[string]any{"src": urlutil.ResolveURL(base, src)}
		set(img, "alt", textutil.Normalize(attr(s, "alt")))
		set(img, "title", attr(s, "title"))
		out = append(out, img)
		return len(out) < maxImages
	})
	return out
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func set(out map[string]any, key string, v any) {
	if !models.IsZeroValue(v) {
		out[key] = v
	}
}
