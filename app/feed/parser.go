package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Parser turns GeoRSS items into loosely-typed objects that go through the
// same field mapping as the other source kinds.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) ([]Object, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	objects := make([]Object, 0, len(feed.Items))
	for _, item := range feed.Items {
		objects = append(objects, p.itemObject(item))
	}

	return objects, nil
}

func (p *Parser) itemObject(item *gofeed.Item) Object {
	obj := Object{
		"guid":        cmp.Or(item.GUID, item.Link),
		"title":       item.Title,
		"description": item.Description,
		"link":        item.Link,
	}

	if len(item.Categories) > 0 {
		obj["Category"] = item.Categories[0]
	}

	if published := cmp.Or(item.PublishedParsed, item.UpdatedParsed); published != nil {
		obj["published"] = published.Format(time.RFC3339)
	}

	if lon, lat, ok := p.extractPoint(item); ok {
		obj["Longitude"] = lon
		obj["Latitude"] = lat
	}

	return obj
}

// extractPoint reads georss:point ("lat lon") or the W3C geo:lat/geo:long pair.
func (p *Parser) extractPoint(item *gofeed.Item) (string, string, bool) {
	if points := item.Extensions["georss"]["point"]; len(points) > 0 {
		parts := strings.Fields(points[0].Value)
		if len(parts) == 2 {
			return parts[1], parts[0], true
		}
	}

	geo := item.Extensions["geo"]
	lat, long := geo["lat"], geo["long"]
	if len(lat) > 0 && len(long) > 0 {
		latValue := strings.TrimSpace(lat[0].Value)
		longValue := strings.TrimSpace(long[0].Value)
		if latValue != "" && longValue != "" {
			return longValue, latValue, true
		}
	}

	return "", "", false
}
