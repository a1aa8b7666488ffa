package htmlutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements end a line of text when flattened.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}

// Text flattens an HTML fragment to plain text. Block elements become line
// breaks, runs of whitespace collapse and blank lines are dropped.
// Input that is not HTML is returned trimmed.
func Text(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return collapse(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}

	var b strings.Builder
	writeText(&b, doc.Selection)
	return collapse(b.String())
}

func writeText(b *strings.Builder, s *goquery.Selection) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch name := goquery.NodeName(c); name {
		case "#text":
			b.WriteString(c.Text())
		case "script", "style", "#comment":
		default:
			writeText(b, c)
			if blockElements[name] {
				b.WriteString("\n")
			}
		}
	})
}

// FirstImage returns the src of the first <img> in the fragment, if any.
func FirstImage(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
