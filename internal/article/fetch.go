// Package article downloads web articles and reduces them to plain text
// suitable for fact extraction.
package article

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0"

// contentSelectors are tried in order; the first match is the article body
var contentSelectors = []string{"article", "main", "div#content"}

// Lines containing any of these are page chrome, not content
var noisePatterns = []string{
	`Table of Contents`, `Quick Facts`, `Read Next`, `Discover`,
	`Feedback`, `References & Edit History`,
	`Share to social media`, `Copy Citation`,
	`Ask the Chatbot a Question`, `External Websites`,
	`Related Topics`, `Images`,
	`verified`, `Last Updated:`, `Select Citation Style`,
	"Show\u00a0more", "Show more", `Print`, `Cite`, `More Actions`,
}

var noiseRegex = compileNoise(noisePatterns)

func compileNoise(patterns []string) *regexp.Regexp {
	quoted := make([]string, len(patterns))
	for i, p := range patterns {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

// Fetcher retrieves article text over HTTP
type Fetcher struct {
	logger zerolog.Logger
	client *http.Client
}

// NewFetcher creates a fetcher; a nil client gets a 30s default
func NewFetcher(logger zerolog.Logger, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		logger: logger.With().Str("component", "article").Logger(),
		client: client,
	}
}

// Fetch downloads url and returns its cleaned main text
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", url, err)
	}

	text := Clean(Extract(doc))
	f.logger.Info().Str("url", url).Int("chars", len(text)).Msg("text extracted")
	return text, nil
}

// Extract returns the text of the main content node, one text run per line
func Extract(doc *goquery.Document) string {
	var node *goquery.Selection
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			node = s
			break
		}
	}
	if node == nil {
		node = doc.Find("body").First()
	}
	if node.Length() == 0 {
		return ""
	}

	node.Find("script, style, noscript").Remove()

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node.Nodes[0])
	return strings.Join(lines, "\n")
}

// Clean drops lines that match the noise list
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !noiseRegex.MatchString(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
