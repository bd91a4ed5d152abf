package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ajou-notice-sync/internal/config"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

const boardListing = `<html><body>
<div class="b-total-wrap"><p>총 <span>2</span> 건</p></div>
<table class="board-table"><tbody>
<tr>
  <td class="b-num-box">2</td><td>학사</td>
  <td class="b-td-left"><div class="b-title-box"><a href="?mode=view&amp;articleNo=502">수강신청 안내</a></div></td>
  <td class="b-no-right">x</td><td>교무팀</td><td>2024-09-02</td>
</tr>
<tr>
  <td class="b-num-box">1</td><td>장학</td>
  <td class="b-td-left"><div class="b-title-box"><a href="?mode=view&amp;articleNo=501">장학금 신청</a></div></td>
  <td class="b-no-right">x</td><td>학생지원팀</td><td>2024-09-01</td>
</tr>
</tbody></table></body></html>`

const boardArticle = `<html><body>
<p class="b-title">title</p>
<div class="b-content-box"><div class="fr-view"><p>첫 줄</p><p>둘째 줄</p></div></div>
</body></html>`

func newBoardServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("mode") == "view" {
			_, _ = w.Write([]byte(boardArticle))
			return
		}
		_, _ = w.Write([]byte(boardListing))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(boardURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 30},
		Board: config.BoardConfig{
			BaseURL:        boardURL + "/kr/ajou/notice.do",
			ImageOrigin:    boardURL,
			PageSize:       20,
			TimeoutSeconds: 5,
		},
		RateLimit:  config.RateLimitConfig{RPS: 100, Burst: 10},
		Summarizer: config.SummarizerConfig{Models: []string{"gemini-2.5-flash"}, TimeoutSeconds: 5},
		Storage:    config.StorageConfig{Backend: "memory", Prefix: "notices"},
		Scheduler:  config.SchedulerConfig{Timezone: "Asia/Seoul"},
		Logging:    config.LoggingConfig{Level: "error"},
	}
}

func TestBuildWiresInMemoryStack(t *testing.T) {
	boardSrv := newBoardServer(t)
	cfg := testConfig(boardSrv.URL)
	require.NoError(t, cfg.Validate())

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.Nil(t, app.scheduler)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	handler := app.apiServer.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notices/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var synced []notice.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &synced))
	require.Len(t, synced, 2)
	require.Equal(t, int64(502), synced[0].ID)
	require.Equal(t, "첫 줄\n둘째 줄", synced[0].Content)
	require.Empty(t, synced[0].Summary)
	require.Equal(t, notice.ViewURL(cfg.Board.BaseURL, 502), synced[0].URL)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notices/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notices?category=%EC%9E%A5%ED%95%99", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []notice.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, int64(501), listed[0].ID)
	require.Equal(t, "학생지원팀", listed[0].Department)
}

func TestBuildWithScheduler(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Spec = "0 9 * * *"

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, app.scheduler)
	require.NotNil(t, app.Runner())
	require.NoError(t, app.Close(context.Background()))
}

func TestBuildFailureClosesInfrastructure(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Spec = "every half hour"

	app, err := NewApp(cfg, zap.NewNop())
	require.NoError(t, err)
	var closed []string
	app.addCloser("archive", func() error {
		closed = append(closed, "archive")
		return nil
	})

	err = buildComponents(context.Background(), app)
	require.ErrorContains(t, err, "scheduler init failed")
	require.Equal(t, []string{"archive"}, closed)
	require.Empty(t, app.closers)

	_, err = Build(context.Background(), cfg)
	require.ErrorContains(t, err, "scheduler init failed")
}

func TestCloseInfrastructureRunsInReverseOnce(t *testing.T) {
	app, err := NewApp(testConfig("http://127.0.0.1:1"), zap.NewNop())
	require.NoError(t, err)

	var order []string
	for _, name := range []string{"gcs client", "notice store", "pubsub client"} {
		app.addCloser(name, func() error {
			order = append(order, name)
			if name == "notice store" {
				return errors.New("already closed")
			}
			return nil
		})
	}
	app.closeInfrastructure()
	app.closeInfrastructure()
	require.Equal(t, []string{"pubsub client", "notice store", "gcs client"}, order)
}

func TestNewAppRequiresConfig(t *testing.T) {
	_, err := NewApp(nil, nil)
	require.ErrorContains(t, err, "config is required")
}
