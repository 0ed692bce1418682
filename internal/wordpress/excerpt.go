package wordpress

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DeriveExcerpt extracts a plain-text excerpt from article HTML, truncated
// to maxLen at a word boundary. Headings are skipped so the excerpt starts
// with body prose.
func DeriveExcerpt(html string, maxLen int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Fall back to the raw text with tags left in; better than nothing.
		return truncateWords(strings.TrimSpace(html), maxLen)
	}

	var sb strings.Builder
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if text == "" {
			return true
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
		return sb.Len() < maxLen
	})

	return truncateWords(sb.String(), maxLen)
}

// truncateWords cuts s to at most maxLen bytes, breaking at the last full
// word and appending an ellipsis when truncated.
func truncateWords(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
