package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

// NoticeStore is an in-memory notice table with insert-if-absent semantics.
type NoticeStore struct {
	mu      sync.RWMutex
	records map[int64]notice.Record
}

// NewNoticeStore constructs an empty NoticeStore.
func NewNoticeStore() *NoticeStore {
	return &NoticeStore{records: make(map[int64]notice.Record)}
}

// MaxID returns the highest stored id, or 0 when empty.
func (s *NoticeStore) MaxID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var maxID int64
	for id := range s.records {
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

// Insert stores rec unless a record with the same id exists. It reports whether
// the record was inserted.
func (s *NoticeStore) Insert(_ context.Context, rec notice.Record) (bool, error) {
	if rec.ID <= 0 {
		return false, errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return false, nil
	}
	s.records[rec.ID] = rec
	return true, nil
}

// List returns one page of records ordered by id descending.
func (s *NoticeStore) List(_ context.Context, q notice.Query) ([]notice.Record, error) {
	q = q.Normalize()
	search := strings.ToLower(q.Search)

	s.mu.RLock()
	matched := make([]notice.Record, 0, len(s.records))
	for _, rec := range s.records {
		if q.Category != "" && rec.Category != q.Category {
			continue
		}
		if q.Department != "" && rec.Department != q.Department {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(rec.Title), search) &&
			!strings.Contains(strings.ToLower(rec.Content), search) {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	start := q.Offset()
	if start >= len(matched) {
		return []notice.Record{}, nil
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// Close is a no-op.
func (s *NoticeStore) Close() {}
