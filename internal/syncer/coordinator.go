// Package syncer turns the newest listing page into notice records: it filters
// entries against a watermark and fans out detail, image and summary retrieval
// per entry.
package syncer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/JakeFAU/ajou-notice-sync/internal/metrics"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

// DefaultPageSize is the number of listing rows scanned per sync.
const DefaultPageSize = 20

// Pipeline stages reported on EntryFailure. StageImage failures never skip
// the entry; the image is left out of the summary request.
const (
	StageDetail = "detail"
	StageImage  = "image"
)

// Board fetches listing and article pages.
type Board interface {
	FetchList(ctx context.Context, offset, limit int, watermark int64) (notice.ListPage, []error, error)
	FetchDetail(ctx context.Context, id int64) (notice.Detail, []byte, error)
	BaseURL() string
}

// ImageFetcher downloads one inline image.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (notice.InlineImage, error)
}

// Summarizer never fails; it returns "" when no summary could be produced.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string, images []notice.InlineImage) string
}

// BlobStore archives raw article HTML.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Config tunes the coordinator.
type Config struct {
	PageSize int
	// ArchivePrefix is the blob path prefix for raw article HTML.
	ArchivePrefix string
}

// EntryFailure describes one listing entry that was skipped, or one of its
// images that was left out.
type EntryFailure struct {
	ID    int64
	Stage string
	Err   error
}

func (f EntryFailure) Error() string {
	return fmt.Sprintf("article %d (%s): %v", f.ID, f.Stage, f.Err)
}

func (f EntryFailure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one sync pass.
type Result struct {
	Records []notice.Record
	// Failures lists entries whose pipeline failed; the rest of the batch is unaffected.
	Failures []EntryFailure
	// ImageFailures lists images that could not be fetched. Their entries are
	// still in Records.
	ImageFailures []EntryFailure
	// RowErrors lists malformed listing rows (*notice.ParseError).
	RowErrors []error
	// Total is the board-wide article count reported by the listing.
	Total int
}

// Coordinator runs sync passes.
type Coordinator struct {
	board      Board
	images     ImageFetcher
	summarizer Summarizer
	archive    BlobStore
	cfg        Config
	logger     *zap.Logger
}

// New builds a Coordinator. archive and logger may be nil.
func New(
	board Board,
	images ImageFetcher,
	summarizer Summarizer,
	archive BlobStore,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "notices"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		board:      board,
		images:     images,
		summarizer: summarizer,
		archive:    archive,
		cfg:        cfg,
		logger:     logger,
	}
}

// Sync scans the newest listing page for entries above watermark.
func (c *Coordinator) Sync(ctx context.Context, watermark int64) (Result, error) {
	return c.SyncPage(ctx, watermark, 0, c.cfg.PageSize)
}

// SyncPage scans one listing page at offset. A listing fetch or parse failure is
// returned as err; per-entry failures are reported in Result.Failures.
//
// Every new entry gets its own goroutine with no upper bound. This is fine for
// the board's page sizes but provides no backpressure if limit grows large.
func (c *Coordinator) SyncPage(ctx context.Context, watermark int64, offset, limit int) (Result, error) {
	if limit <= 0 {
		limit = c.cfg.PageSize
	}
	page, rowErrs, err := c.board.FetchList(ctx, offset, limit, watermark)
	if err != nil {
		return Result{}, fmt.Errorf("sync listing: %w", err)
	}
	for _, rowErr := range rowErrs {
		c.logger.Warn("skipping malformed listing row", zap.Error(rowErr))
	}
	fresh := FilterNew(page.Entries, watermark)
	c.logger.Info("listing fetched",
		zap.Int("total", page.Total),
		zap.Int("rows", len(page.Entries)),
		zap.Int("new", len(fresh)),
		zap.Int64("watermark", watermark),
		zap.Int("offset", offset),
	)

	type outcome struct {
		record  notice.Record
		failure *EntryFailure
		skipped []EntryFailure
	}
	outcomes := make([]outcome, len(fresh))
	var wg conc.WaitGroup
	for i := range fresh {
		wg.Go(func() {
			rec, skipped, failure := c.processEntry(ctx, fresh[i])
			outcomes[i] = outcome{record: rec, failure: failure, skipped: skipped}
		})
	}
	wg.Wait()

	res := Result{RowErrors: rowErrs, Total: page.Total}
	for _, o := range outcomes {
		res.ImageFailures = append(res.ImageFailures, o.skipped...)
		if o.failure != nil {
			metrics.ObserveEntryFailure(o.failure.Stage)
			c.logger.Warn("skipping article",
				zap.Int64("article_no", o.failure.ID),
				zap.String("stage", o.failure.Stage),
				zap.Error(o.failure.Err),
			)
			res.Failures = append(res.Failures, *o.failure)
			continue
		}
		res.Records = append(res.Records, o.record)
	}
	return res, nil
}

func (c *Coordinator) processEntry(
	ctx context.Context,
	entry notice.ListEntry,
) (notice.Record, []EntryFailure, *EntryFailure) {
	detail, raw, err := c.board.FetchDetail(ctx, entry.ID)
	if err != nil {
		return notice.Record{}, nil, &EntryFailure{ID: entry.ID, Stage: StageDetail, Err: err}
	}
	c.archiveDetail(ctx, entry.ID, raw)

	images, skipped := c.fetchImages(ctx, entry.ID, detail.ImageURLs)

	title := detail.Title
	if title == "" {
		title = entry.Title
	}
	summary := c.summarizer.Summarize(ctx, title, detail.Content, images)
	return notice.Record{
		ID:         entry.ID,
		Category:   entry.Category,
		Department: entry.Department,
		Title:      entry.Title,
		Date:       entry.Date,
		Content:    detail.Content,
		Summary:    summary,
		URL:        notice.ViewURL(c.board.BaseURL(), entry.ID),
	}, skipped, nil
}

// fetchImages downloads images concurrently and keeps the ones that arrived,
// in document order.
func (c *Coordinator) fetchImages(ctx context.Context, id int64, urls []string) ([]notice.InlineImage, []EntryFailure) {
	type fetched struct {
		image notice.InlineImage
		err   error
	}
	results := iter.Map(urls, func(src *string) fetched {
		img, err := c.images.Fetch(ctx, *src)
		return fetched{image: img, err: err}
	})

	images := make([]notice.InlineImage, 0, len(results))
	var skipped []EntryFailure
	for i, r := range results {
		if r.err != nil {
			metrics.ObserveImageSkipped()
			c.logger.Warn("leaving image out of summary",
				zap.Int64("article_no", id),
				zap.String("src", urls[i]),
				zap.Error(r.err),
			)
			skipped = append(skipped, EntryFailure{ID: id, Stage: StageImage, Err: r.err})
			continue
		}
		images = append(images, r.image)
	}
	return images, skipped
}

func (c *Coordinator) archiveDetail(ctx context.Context, id int64, raw []byte) {
	if c.archive == nil || len(raw) == 0 {
		return
	}
	objectPath := path.Join(c.cfg.ArchivePrefix, strconv.FormatInt(id, 10)+".html")
	uri, err := c.archive.PutObject(ctx, objectPath, "text/html; charset=utf-8", bytes.NewReader(raw))
	if err != nil {
		c.logger.Warn("archive article html failed", zap.Int64("article_no", id), zap.Error(err))
		return
	}
	c.logger.Debug("archived article html", zap.Int64("article_no", id), zap.String("uri", uri))
}

// FilterNew keeps entries strictly above watermark, preserving order.
func FilterNew(entries []notice.ListEntry, watermark int64) []notice.ListEntry {
	out := make([]notice.ListEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID > watermark {
			out = append(out, e)
		}
	}
	return out
}
