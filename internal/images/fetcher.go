// Package images retrieves inline article images for summarization.
package images

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	collyfetcher "github.com/JakeFAU/ajou-notice-sync/internal/fetcher/colly"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

const (
	// DefaultOrigin resolves origin-relative image paths found in article bodies.
	DefaultOrigin = "https://ajou.ac.kr"

	defaultMIMEType = "image/jpeg"
	acceptImages    = "image/avif,image/webp,image/png,image/svg+xml,image/*;q=0.8,*/*;q=0.5"
)

// Getter performs a single GET.
type Getter interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Fetcher downloads images relative to a fixed origin.
type Fetcher struct {
	getter Getter
	origin *url.URL
}

// New returns a Fetcher resolving relative URLs against origin (DefaultOrigin when empty).
func New(getter Getter, origin string) (*Fetcher, error) {
	if origin == "" {
		origin = DefaultOrigin
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse image origin: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("image origin %q must be absolute", origin)
	}
	return &Fetcher{getter: getter, origin: u}, nil
}

// Resolve returns rawURL as an absolute URL.
func (f *Fetcher) Resolve(rawURL string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse image url %q: %w", rawURL, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return f.origin.ResolveReference(ref).String(), nil
}

// Fetch downloads one image. Non-2xx responses yield *notice.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (notice.InlineImage, error) {
	target, err := f.Resolve(rawURL)
	if err != nil {
		return notice.InlineImage{}, err
	}
	resp, err := f.getter.Fetch(ctx, collyfetcher.Request{
		URL:     target,
		Headers: http.Header{"Accept": {acceptImages}},
		Kind:    "image",
	})
	if err != nil {
		return notice.InlineImage{}, fmt.Errorf("fetch image: %w", err)
	}
	mimeType := ""
	if resp.Headers != nil {
		mimeType = resp.Headers.Get("Content-Type")
	}
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	return notice.InlineImage{Data: resp.Body, MIMEType: mimeType}, nil
}
