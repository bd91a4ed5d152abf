package notice

import (
	"errors"
	"fmt"
)

// ErrSummaryUnavailable marks that every summarization backend failed.
var ErrSummaryUnavailable = errors.New("no summarization backend succeeded")

// FetchError reports a non-success HTTP status from the board or an image host.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// ParseError reports a listing row that could not be turned into an entry.
type ParseError struct {
	Row    int
	Href   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parse row %d (%q): %s", e.Row, e.Href, e.Reason)
	}
	return fmt.Sprintf("parse %q: %s", e.Href, e.Reason)
}
