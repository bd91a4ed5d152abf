package board

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

const (
	detailTitleSelector = ".b-title"
	bodySelector        = "div.b-content-box > div.fr-view"
)

// ParseDetailPage extracts the title, paragraph text and image sources of an
// article page. Paragraphs are joined with "\n" and the result is trimmed.
func ParseDetailPage(html []byte) (notice.Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return notice.Detail{}, fmt.Errorf("parse detail document: %w", err)
	}

	body := doc.Find(bodySelector)
	paragraphs := body.Find("p").Map(func(_ int, p *goquery.Selection) string {
		return p.Text()
	})

	var images []string
	body.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
			images = append(images, strings.TrimSpace(src))
		}
	})

	return notice.Detail{
		Title:     strings.TrimSpace(doc.Find(detailTitleSelector).First().Text()),
		Content:   strings.TrimSpace(strings.Join(paragraphs, "\n")),
		ImageURLs: images,
	}, nil
}
