package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/ajou-notice-sync/internal/fetcher/colly"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

func TestFetchResolvesRelativeAgainstOrigin(t *testing.T) {
	t.Parallel()

	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	f, err := New(collyfetcher.New(collyfetcher.Config{}, nil), srv.URL)
	require.NoError(t, err)

	img, err := f.Fetch(context.Background(), "/upload/board/a.png")
	require.NoError(t, err)
	require.Equal(t, "image/png", img.MIMEType)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img.Data)
	got := <-seen
	require.Equal(t, "/upload/board/a.png", got.URL.Path)
	require.Contains(t, got.Header.Get("Accept"), "image/")
	require.Equal(t, collyfetcher.BrowserUserAgent, got.Header.Get("User-Agent"))
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f, err := New(collyfetcher.New(collyfetcher.Config{}, nil), srv.URL)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/blocked.jpg")
	var fe *notice.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, http.StatusForbidden, fe.StatusCode)
}

func TestFetchDefaultsMIMEType(t *testing.T) {
	t.Parallel()

	getter := &stubGetter{resp: collyfetcher.Response{StatusCode: http.StatusOK, Body: []byte("raw")}}
	f, err := New(getter, "")
	require.NoError(t, err)

	img, err := f.Fetch(context.Background(), "/x.jpg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", img.MIMEType)
	require.Equal(t, "https://ajou.ac.kr/x.jpg", getter.got.URL)
	require.Equal(t, "image", getter.got.Kind)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	f, err := New(nil, "https://ajou.ac.kr")
	require.NoError(t, err)

	tests := map[string]string{
		"/upload/a.png":                 "https://ajou.ac.kr/upload/a.png",
		"upload/b.png":                  "https://ajou.ac.kr/upload/b.png",
		"https://cdn.example.com/c.gif": "https://cdn.example.com/c.gif",
	}
	for in, want := range tests {
		got, err := f.Resolve(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
}

func TestNewRejectsRelativeOrigin(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "/just/a/path")
	require.Error(t, err)
}

type stubGetter struct {
	got  collyfetcher.Request
	resp collyfetcher.Response
	err  error
}

func (s *stubGetter) Fetch(_ context.Context, req collyfetcher.Request) (collyfetcher.Response, error) {
	s.got = req
	return s.resp, s.err
}
