package feed

import (
	"fmt"
	"log/slog"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// Normalizer turns parsed entries into date-keyed posts.
type Normalizer struct {
	converter *md.Converter
	fallback  *bluemonday.Policy
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		converter: md.NewConverter("", true, nil),
		fallback:  bluemonday.StrictPolicy(),
	}
}

// Run normalizes every entry. An entry missing a required field fails the
// whole batch. Entries sharing a date overwrite each other in order.
func (n *Normalizer) Run(entries []Entry) (map[Date]Post, error) {
	posts := make(map[Date]Post, len(entries))

	for i, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		date := DateOf(*entry.Published)
		if _, exists := posts[date]; exists {
			slog.Debug("Duplicate entry date, keeping the later one", "date", date.String(), "index", i)
		}

		posts[date] = Post{
			Title:   strings.TrimSpace(norm.NFC.String(entry.Title)),
			Link:    strings.TrimSpace(entry.Link),
			Summary: entry.Summary,
			Body:    n.CleanSummary(entry.Summary),
		}
	}

	return posts, nil
}

// CleanSummary removes embedded images from an HTML summary and converts the
// rest to markdown.
func (n *Normalizer) CleanSummary(summary string) string {
	stripped, err := stripImages(summary)
	if err != nil {
		slog.Warn("Failed to strip images from summary", "error", err)
		stripped = summary
	}

	markdown, err := n.converter.ConvertString(stripped)
	if err != nil {
		slog.Warn("Failed to convert summary to markdown, using plain text", "error", err)
		return strings.Join(strings.Fields(n.fallback.Sanitize(stripped)), " ")
	}

	return strings.TrimSpace(markdown)
}

func stripImages(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse summary HTML: %w", err)
	}

	doc.Find("img").Remove()

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to render summary HTML: %w", err)
	}

	return out, nil
}

func validateEntry(entry Entry) error {
	switch {
	case strings.TrimSpace(entry.Title) == "":
		return fmt.Errorf("%w: missing title", ErrMalformedEntry)
	case strings.TrimSpace(entry.Link) == "":
		return fmt.Errorf("%w: missing link", ErrMalformedEntry)
	case strings.TrimSpace(entry.Summary) == "":
		return fmt.Errorf("%w: missing summary", ErrMalformedEntry)
	case entry.Published == nil:
		return fmt.Errorf("%w: missing published date", ErrMalformedEntry)
	}
	return nil
}
