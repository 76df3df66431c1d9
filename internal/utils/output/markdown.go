package output

import (
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

func newConverter(baseURL string) *md.Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists {
				return nil
			}

			resolved := urlutil.ResolveURL(baseURL, href)
			title, hasTitle := selec.Attr("title")
			var titlePart string
			if hasTitle {
				titlePart = fmt.Sprintf(" %q", title)
			}
			str := fmt.Sprintf("[%s](%s%s)", strings.TrimSpace(selec.Text()), resolved, titlePart)
			return &str
		},
	})
	return converter
}

// ToMarkdown converts an HTML fragment to GitHub flavored markdown with
// links resolved against baseURL
func ToMarkdown(baseURL, fragment string) (string, error) {
	cleaned, err := CleanHTML(fragment, true)
	if err != nil {
		return "", err
	}
	out, err := newConverter(baseURL).ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// WriteMarkdown renders records as one section per record, each a two
// column table of flattened fields
func WriteMarkdown(w io.Writer, records []models.Record) error {
	for i, rec := range records {
		title := rec.URL()
		if name, ok := rec["name"].(string); ok && name != "" {
			title = name
		} else if t, ok := rec["title"].(string); ok && t != "" {
			title = t
		}

		if _, err := fmt.Fprintf(w, "## %d. %s\n\n| Field | Value |\n| --- | --- |\n", i+1, escapeCell(title)); err != nil {
			return err
		}
		flat := Flatten(rec)
		for _, k := range SortedKeys(flat) {
			if _, err := fmt.Fprintf(w, "| %s | %s |\n", escapeCell(k), escapeCell(flat[k])); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
