package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

type webSearchArgs struct {
	Query      string `json:"query" jsonschema:"required" jsonschema_description:"Search query text."`
	NumResults int    `json:"num_results,omitempty" jsonschema_description:"Maximum number of results to return (1-10, default 5)."`
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Engine  string         `json:"engine"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// NewWebSearch queries the DuckDuckGo HTML endpoint and scrapes the result
// list. No API key needed.
func NewWebSearch() Tool {
	return Typed("web_search",
		"Search the web and return top results with title, URL and snippet.",
		func(ctx context.Context, args webSearchArgs) (any, error) {
			query := strings.TrimSpace(args.Query)
			if query == "" {
				return nil, fmt.Errorf("query is required")
			}
			limit := args.NumResults
			if limit <= 0 {
				limit = 5
			}
			if limit > 10 {
				limit = 10
			}
			return searchDuckDuckGo(ctx, query, limit)
		})
}

func searchDuckDuckGo(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	endpoint := "https://duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agentloop/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := &http.Client{Timeout: 25 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed with HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 3<<20))
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	results := parseSearchResults(doc, limit)
	return &SearchResponse{Query: query, Engine: "duckduckgo", Count: len(results), Results: results}, nil
}

func parseSearchResults(doc *html.Node, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil || len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			title := strings.TrimSpace(nodeText(n))
			resolved := resolveResultURL(attrValue(n, "href"))
			if title != "" && resolved != "" {
				results = append(results, SearchResult{
					Title:   title,
					URL:     resolved,
					Snippet: snippetFor(n),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func snippetFor(anchor *html.Node) string {
	for p := anchor.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && (hasClass(p, "result") || hasClass(p, "result__body")) {
			if s := textByClass(p, "result__snippet"); s != "" {
				return s
			}
		}
	}
	return ""
}

// resolveResultURL unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...).
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			if decoded, err := url.QueryUnescape(target); err == nil {
				return decoded
			}
			return target
		}
	}
	if u.Scheme == "" {
		return ""
	}
	return u.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func textByClass(root *html.Node, class string) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil || found != "" {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, class) {
			found = strings.TrimSpace(nodeText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}
