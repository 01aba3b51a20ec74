package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

const maxExcerptLength = 500

type LinkPreview struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// ContentExtractor reduces a record's reference page to a readable title and
// excerpt.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(data []byte, pageURL string) (*LinkPreview, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	excerpt := strings.TrimSpace(article.Excerpt)
	if excerpt == "" {
		excerpt = strings.TrimSpace(article.TextContent)
	}
	if excerpt == "" {
		return nil, fmt.Errorf("no content extracted from HTML data")
	}
	if runes := []rune(excerpt); len(runes) > maxExcerptLength {
		excerpt = string(runes[:maxExcerptLength])
	}

	slog.Debug("Link preview extracted",
		"url", pageURL,
		"title", article.Title,
		"excerpt_length", len(excerpt))

	return &LinkPreview{
		URL:     pageURL,
		Title:   strings.TrimSpace(article.Title),
		Excerpt: excerpt,
	}, nil
}
