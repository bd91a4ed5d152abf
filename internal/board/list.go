// Package board parses and fetches the notice board's listing and article pages.
package board

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

const (
	rowSelector        = "table.board-table > tbody > tr"
	indexSelector      = "td.b-num-box"
	categorySelector   = "td.b-num-box + td"
	titleLinkSelector  = "td.b-td-left > div.b-title-box > a"
	departmentSelector = "td.b-no-right + td"
	dateSelector       = "td.b-no-right + td + td"
	totalSelector      = "div.b-total-wrap > p > span"
)

var digits = regexp.MustCompile(`\d+`)

// ParseListPage parses one listing page into entries in document order.
//
// Rows without a numeric sequence index (pinned notices, headers) are dropped.
// Rows whose link carries no usable article number are reported in rowErrs as
// *notice.ParseError and skipped. When watermark > 0 parsing stops at the first
// entry at or below it; the board lists newest first.
func ParseListPage(html []byte, watermark int64) (notice.ListPage, []error, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return notice.ListPage{}, nil, fmt.Errorf("parse listing document: %w", err)
	}

	page := notice.ListPage{Total: parseTotal(doc)}
	var rowErrs []error
	doc.Find(rowSelector).EachWithBreak(func(i int, row *goquery.Selection) bool {
		seq, err := strconv.Atoi(text(row, indexSelector))
		if err != nil {
			return true
		}
		link := row.Find(titleLinkSelector).First()
		href, _ := link.Attr("href")
		id, err := ExtractArticleID(href)
		if err != nil {
			var pe *notice.ParseError
			if errors.As(err, &pe) {
				pe.Row = i + 1
			}
			rowErrs = append(rowErrs, err)
			return true
		}
		if watermark > 0 && id <= watermark {
			return false
		}
		page.Entries = append(page.Entries, notice.ListEntry{
			SequenceIndex: seq,
			ID:            id,
			Category:      text(row, categorySelector),
			Title:         strings.TrimSpace(link.Text()),
			DetailURL:     href,
			Department:    text(row, departmentSelector),
			Date:          text(row, dateSelector),
		})
		return true
	})
	return page, rowErrs, nil
}

// ExtractArticleID returns the articleNo query parameter of a detail link.
// Relative links such as "?mode=view&articleNo=1" are accepted.
func ExtractArticleID(href string) (int64, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return 0, &notice.ParseError{Href: href, Reason: "invalid link: " + err.Error()}
	}
	raw := u.Query().Get("articleNo")
	if raw == "" {
		return 0, &notice.ParseError{Href: href, Reason: "missing articleNo"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &notice.ParseError{Href: href, Reason: fmt.Sprintf("invalid articleNo %q", raw)}
	}
	return id, nil
}

func parseTotal(doc *goquery.Document) int {
	raw := strings.Join(digits.FindAllString(doc.Find(totalSelector).First().Text(), -1), "")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}
