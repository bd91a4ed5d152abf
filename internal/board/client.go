package board

import (
	"context"
	"fmt"
	"net/http"

	collyfetcher "github.com/JakeFAU/ajou-notice-sync/internal/fetcher/colly"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

// Fetcher performs a single GET.
type Fetcher interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Client fetches and parses board pages.
type Client struct {
	fetcher Fetcher
	baseURL string
}

// NewClient returns a Client for the board at baseURL (notice.DefaultBoardURL when empty).
func NewClient(fetcher Fetcher, baseURL string) *Client {
	if baseURL == "" {
		baseURL = notice.DefaultBoardURL
	}
	return &Client{fetcher: fetcher, baseURL: baseURL}
}

// BaseURL returns the board endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchList retrieves and parses one listing page. Malformed rows are returned
// in rowErrs; transport and document errors are returned as err.
func (c *Client) FetchList(ctx context.Context, offset, limit int, watermark int64) (notice.ListPage, []error, error) {
	target := notice.ListURL(c.baseURL, offset, limit)
	resp, err := c.fetcher.Fetch(ctx, collyfetcher.Request{URL: target, Headers: htmlHeaders(), Kind: "list"})
	if err != nil {
		return notice.ListPage{}, nil, fmt.Errorf("fetch listing: %w", err)
	}
	page, rowErrs, err := ParseListPage(resp.Body, watermark)
	if err != nil {
		return notice.ListPage{}, nil, err
	}
	return page, rowErrs, nil
}

// FetchDetail retrieves and parses the article page for id. The raw HTML is
// returned alongside the parsed detail for archiving.
func (c *Client) FetchDetail(ctx context.Context, id int64) (notice.Detail, []byte, error) {
	target := notice.ViewURL(c.baseURL, id)
	resp, err := c.fetcher.Fetch(ctx, collyfetcher.Request{URL: target, Headers: htmlHeaders(), Kind: "detail"})
	if err != nil {
		return notice.Detail{}, nil, fmt.Errorf("fetch article %d: %w", id, err)
	}
	detail, err := ParseDetailPage(resp.Body)
	if err != nil {
		return notice.Detail{}, nil, fmt.Errorf("article %d: %w", id, err)
	}
	return detail, resp.Body, nil
}

func htmlHeaders() http.Header {
	return http.Header{"Accept": {"text/html"}}
}
