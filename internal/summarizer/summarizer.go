// Package summarizer produces short bullet summaries of notices through an
// ordered list of generative backends, degrading to an empty summary.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ajou-notice-sync/internal/metrics"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

// Glyph prefixes every summary line.
const Glyph = "✨ "

const promptTemplate = `다음은 아주대학교 공지사항 게시글입니다. 다음 지시사항에 따라 게시글의 내용을 간단히 요약해주세요:
1. 불렛포인트(-) 형식을 사용하여 최대 3줄의 *간결한* 문장으로 요약해주세요.
2. 주요 날짜, 장소 등 공지사항의 핵심 정보를 포함해주세요.
3. 예의바르고 친근한 어투의 *한국어*를 사용해주세요.

제목: %s
게시글 내용: %s`

// Backend is one candidate model.
type Backend interface {
	Name() string
	Generate(ctx context.Context, parts []notice.Part) (string, error)
}

// Summarizer tries its backends in order for every notice.
type Summarizer struct {
	backends []Backend
	timeout  time.Duration
	logger   *zap.Logger
}

// Option customizes a Summarizer.
type Option func(*Summarizer)

// WithAttemptTimeout bounds each backend attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		s.timeout = d
	}
}

// New returns a Summarizer. logger may be nil.
func New(backends []Backend, logger *zap.Logger, opts ...Option) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Summarizer{
		backends: append([]Backend(nil), backends...),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns the decorated bullet summary, or "" when every backend fails.
func (s *Summarizer) Summarize(ctx context.Context, title, content string, images []notice.InlineImage) string {
	parts := BuildParts(title, content, images)
	text, model, err := FirstSuccess(ctx, s.attempts(), parts)
	if err != nil {
		metrics.ObserveSummaryDegraded()
		s.logger.Warn("summary unavailable", zap.String("title", title), zap.Error(err))
		return ""
	}
	s.logger.Debug("summary generated", zap.String("model", model), zap.String("title", title))
	return ExtractBullets(text)
}

func (s *Summarizer) attempts() []Backend {
	if s.timeout <= 0 {
		return s.backends
	}
	out := make([]Backend, len(s.backends))
	for i, b := range s.backends {
		out[i] = timeoutBackend{Backend: b, timeout: s.timeout}
	}
	return out
}

// FirstSuccess tries backends in order and returns the first successful text and
// the name of the backend that produced it. The returned error wraps
// notice.ErrSummaryUnavailable and every attempt's failure.
func FirstSuccess(ctx context.Context, backends []Backend, parts []notice.Part) (string, string, error) {
	errs := []error{notice.ErrSummaryUnavailable}
	for _, b := range backends {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		text, err := b.Generate(ctx, parts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		return text, b.Name(), nil
	}
	return "", "", errors.Join(errs...)
}

// BuildParts places the images first, followed by a single instruction text part.
func BuildParts(title, content string, images []notice.InlineImage) []notice.Part {
	parts := make([]notice.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, notice.ImagePart(img))
	}
	return append(parts, notice.TextPart(Prompt(title, content)))
}

// Prompt renders the summarization instruction for one notice.
func Prompt(title, content string) string {
	return fmt.Sprintf(promptTemplate, title, content)
}

// ExtractBullets keeps only "- " and "* " lines, strips the marker and prefixes Glyph.
func ExtractBullets(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		var rest string
		switch {
		case strings.HasPrefix(line, "- "):
			rest = strings.TrimPrefix(line, "- ")
		case strings.HasPrefix(line, "* "):
			rest = strings.TrimPrefix(line, "* ")
		default:
			continue
		}
		out = append(out, Glyph+strings.TrimSpace(rest))
	}
	return strings.Join(out, "\n")
}

type timeoutBackend struct {
	Backend
	timeout time.Duration
}

func (t timeoutBackend) Generate(ctx context.Context, parts []notice.Part) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Backend.Generate(ctx, parts)
}
