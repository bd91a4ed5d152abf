package board

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/ajou-notice-sync/internal/fetcher/colly"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

const listFixture = `<html><body>
<div class="b-total-wrap"><p>총 <span>1,234</span> 건</p></div>
<table class="board-table">
<thead><tr><th>번호</th></tr></thead>
<tbody>
<tr>
  <td class="b-num-box">공지</td>
  <td>학사</td>
  <td class="b-td-left"><div class="b-title-box"><a href="?mode=view&amp;articleNo=99999">Pinned</a></div></td>
  <td class="b-no-right">x</td><td>교무팀</td><td>2024-09-01</td>
</tr>
<tr>
  <td class="b-num-box"> 120 </td>
  <td> 장학 </td>
  <td class="b-td-left"><div class="b-title-box"><a href="?mode=view&amp;articleNo=300"> 2학기 장학금 안내 </a></div></td>
  <td class="b-no-right">x</td><td> 학생지원팀 </td><td> 2024-09-03 </td>
</tr>
<tr>
  <td class="b-num-box">119</td>
  <td>학사</td>
  <td class="b-td-left"><div class="b-title-box"><a href="?mode=view">Broken link</a></div></td>
  <td class="b-no-right">x</td><td>교무팀</td><td>2024-09-02</td>
</tr>
<tr>
  <td class="b-num-box">118</td>
  <td>행사</td>
  <td class="b-td-left"><div class="b-title-box"><a href="/kr/ajou/notice.do?mode=view&amp;articleNo=298">축제</a></div></td>
  <td class="b-no-right">x</td><td>총학생회</td><td>2024-09-01</td>
</tr>
<tr>
  <td class="b-num-box">117</td>
  <td>학사</td>
  <td class="b-td-left"><div class="b-title-box"><a href="?mode=view&amp;articleNo=290">Old</a></div></td>
  <td class="b-no-right">x</td><td>교무팀</td><td>2024-08-30</td>
</tr>
</tbody>
</table></body></html>`

const detailFixture = `<html><body>
<p class="b-title"> 2학기 장학금 안내 </p>
<div class="b-content-box"><div class="fr-view">
  <p>P1</p>
  <img src="/upload/a.png">
  <p>P2</p>
  <img alt="no source">
  <p>P3</p>
  <img src="https://cdn.example.com/b.jpg">
</div></div>
<p>outside</p>
</body></html>`

func TestParseListPage(t *testing.T) {
	t.Parallel()

	page, rowErrs, err := ParseListPage([]byte(listFixture), 0)
	require.NoError(t, err)
	require.Equal(t, 1234, page.Total)
	require.Len(t, page.Entries, 3)

	first := page.Entries[0]
	require.Equal(t, notice.ListEntry{
		SequenceIndex: 120,
		ID:            300,
		Category:      "장학",
		Title:         "2학기 장학금 안내",
		DetailURL:     "?mode=view&articleNo=300",
		Department:    "학생지원팀",
		Date:          "2024-09-03",
	}, first)
	require.Equal(t, int64(298), page.Entries[1].ID)
	require.Equal(t, int64(290), page.Entries[2].ID)

	require.Len(t, rowErrs, 1)
	var pe *notice.ParseError
	require.True(t, errors.As(rowErrs[0], &pe))
	require.Equal(t, 3, pe.Row)
	require.Equal(t, "?mode=view", pe.Href)
}

func TestParseListPageStopsAtWatermark(t *testing.T) {
	t.Parallel()

	page, _, err := ParseListPage([]byte(listFixture), 298)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, int64(300), page.Entries[0].ID)
}

func TestParseListPageWithoutTable(t *testing.T) {
	t.Parallel()

	page, rowErrs, err := ParseListPage([]byte("<html><body>maintenance</body></html>"), 0)
	require.NoError(t, err)
	require.Empty(t, page.Entries)
	require.Empty(t, rowErrs)
	require.Zero(t, page.Total)
}

func TestExtractArticleID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		href    string
		want    int64
		wantErr bool
	}{
		{name: "absolute", href: "https://www.ajou.ac.kr/kr/ajou/notice.do?mode=view&articleNo=12345", want: 12345},
		{name: "relative", href: "?mode=view&articleNo=7&article.offset=0", want: 7},
		{name: "missing", href: "https://www.ajou.ac.kr/kr/ajou/notice.do?mode=view", wantErr: true},
		{name: "empty", href: "", wantErr: true},
		{name: "not numeric", href: "?articleNo=abc", wantErr: true},
		{name: "negative", href: "?articleNo=-4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractArticleID(tt.href)
			if tt.wantErr {
				var pe *notice.ParseError
				require.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseDetailPage(t *testing.T) {
	t.Parallel()

	detail, err := ParseDetailPage([]byte(detailFixture))
	require.NoError(t, err)
	require.Equal(t, "2학기 장학금 안내", detail.Title)
	require.Equal(t, "P1\nP2\nP3", detail.Content)
	require.Equal(t, []string{"/upload/a.png", "https://cdn.example.com/b.jpg"}, detail.ImageURLs)
}

func TestParseDetailPageEmptyBody(t *testing.T) {
	t.Parallel()

	detail, err := ParseDetailPage([]byte(`<div class="b-content-box"><div class="fr-view"></div></div>`))
	require.NoError(t, err)
	require.Empty(t, detail.Content)
	require.Empty(t, detail.ImageURLs)
}

func TestClientFetchesListAndDetail(t *testing.T) {
	t.Parallel()

	var (
		mu         sync.Mutex
		gotQueries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotQueries = append(gotQueries, r.URL.RawQuery)
		mu.Unlock()
		switch r.URL.Query().Get("mode") {
		case "list":
			_, _ = w.Write([]byte(listFixture))
		case "view":
			_, _ = w.Write([]byte(detailFixture))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(collyfetcher.New(collyfetcher.Config{}, nil), srv.URL+"/kr/ajou/notice.do")
	page, rowErrs, err := c.FetchList(context.Background(), 0, 20, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)
	require.Len(t, rowErrs, 1)

	detail, raw, err := c.FetchDetail(context.Background(), 300)
	require.NoError(t, err)
	require.Equal(t, "P1\nP2\nP3", detail.Content)
	require.True(t, strings.Contains(string(raw), "fr-view"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"article.offset=0&articleLimit=20&mode=list",
		"articleNo=300&mode=view",
	}, gotQueries)
}

func TestClientFetchListPropagatesFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(collyfetcher.New(collyfetcher.Config{}, nil), srv.URL)
	_, _, err := c.FetchList(context.Background(), 0, 20, 0)
	var fe *notice.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
}

func TestNewClientDefaultsBaseURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, notice.DefaultBoardURL, NewClient(nil, "").BaseURL())
}
