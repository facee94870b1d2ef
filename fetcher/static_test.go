package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"govdoc-scraper/config"
	"govdoc-scraper/fetcher"
	"govdoc-scraper/logger"
)

func newStatic() *fetcher.Static {
	return fetcher.NewStatic(config.GetDefaultConfig().HTTP, 5*time.Second, logger.NewNop())
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("<html><body><p>关于印发通知</p></body></html>")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Language"), "zh-CN")
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		_, _ = w.Write([]byte(gbk))
	}))
	defer srv.Close()

	page, err := newStatic().Fetch(context.Background(), srv.URL+"/a.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Body, "关于印发通知")
}

func TestFetchRevisitsSameURL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := newStatic()
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, hits)
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newStatic().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newStatic().Fetch(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchReportsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.html", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/page.html", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/page.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newStatic().Fetch(context.Background(), srv.URL+"/old.html")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new/page.html", page.URL)
}
