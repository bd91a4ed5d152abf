// Package notice holds the domain types shared by the board scraper, the
// summarizer, the sync coordinator and the persistence layer.
package notice

import (
	"math"
	"net/url"
	"strconv"
)

// DefaultBoardURL is the listing/detail endpoint of the notice board.
const DefaultBoardURL = "https://www.ajou.ac.kr/kr/ajou/notice.do"

// Record is the persisted form of a single notice.
type Record struct {
	ID         int64  `json:"id"`
	Category   string `json:"category"`
	Department string `json:"department"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	Content    string `json:"content"`
	Summary    string `json:"summary"`
	URL        string `json:"url"`
}

// ListEntry is one data row of the listing table.
type ListEntry struct {
	SequenceIndex int
	ID            int64
	Category      string
	Title         string
	DetailURL     string
	Department    string
	Date          string
}

// ListPage is a parsed listing page.
type ListPage struct {
	Entries []ListEntry
	// Total is the board-wide article count shown above the table, 0 when absent.
	Total int
}

// Detail is the parsed body of an article page.
type Detail struct {
	Title     string
	Content   string
	ImageURLs []string
}

// InlineImage is image content handed to the summarizer. It is never persisted.
type InlineImage struct {
	Data     []byte
	MIMEType string
}

// Part is one unit of a generative request: either text or an inline image.
type Part struct {
	text  string
	image *InlineImage
}

// TextPart wraps s as a text part.
func TextPart(s string) Part {
	return Part{text: s}
}

// ImagePart wraps img as an inline-data part.
func ImagePart(img InlineImage) Part {
	return Part{image: &img}
}

// IsImage reports whether p carries an image.
func (p Part) IsImage() bool {
	return p.image != nil
}

// Text returns the text payload; empty for image parts.
func (p Part) Text() string {
	return p.text
}

// Image returns the image payload; zero value for text parts.
func (p Part) Image() InlineImage {
	if p.image == nil {
		return InlineImage{}
	}
	return *p.image
}

// Query filters a page of stored records.
type Query struct {
	Page       int
	PageSize   int
	Category   string
	Department string
	Search     string
}

// DefaultPageSize is the API page size for stored records.
const DefaultPageSize = 10

// Normalize fills defaults for paging.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// Offset returns the row offset for the requested page. Pages too far out to
// address saturate at math.MaxInt, which every store treats as past the end.
func (q Query) Offset() int {
	n := q.Normalize()
	if n.Page-1 > math.MaxInt/n.PageSize {
		return math.MaxInt
	}
	return (n.Page - 1) * n.PageSize
}

// ViewURL builds the canonical detail URL for an article on the given board.
func ViewURL(boardURL string, id int64) string {
	if boardURL == "" {
		boardURL = DefaultBoardURL
	}
	v := url.Values{}
	v.Set("mode", "view")
	v.Set("articleNo", strconv.FormatInt(id, 10))
	return boardURL + "?" + v.Encode()
}

// ListURL builds the listing URL for one page of the board.
func ListURL(boardURL string, offset, limit int) string {
	if boardURL == "" {
		boardURL = DefaultBoardURL
	}
	v := url.Values{}
	v.Set("mode", "list")
	v.Set("articleLimit", strconv.Itoa(limit))
	v.Set("article.offset", strconv.Itoa(offset))
	return boardURL + "?" + v.Encode()
}
