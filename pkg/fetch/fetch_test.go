package fetch_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/rpmdeplint/rpmdeplint/pkg/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repodata/repomd.xml", r.URL.Path)
		_, _ = w.Write([]byte("manifest"))
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	err := fetch.NewClient().Fetch(context.Background(), srv.URL+"/repodata/repomd.xml", &buf)
	require.NoError(t, err)
	assert.Equal(t, "manifest", buf.String())
}

func TestClient_FetchStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	err := fetch.NewClient().Fetch(context.Background(), srv.URL+"/repodata/repomd.xml", &buf)
	require.Error(t, err)
	assert.True(t, fetch.IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "repomd.xml")
}

func TestClient_FetchPrefix(t *testing.T) {
	t.Parallel()
	payload := bytes.Repeat([]byte("x"), 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-99", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 0-99/1000")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[:100])
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	err := fetch.NewClient().FetchPrefix(context.Background(), srv.URL+"/pkg.rpm", &buf, 100)
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), 100)
}

func TestClient_FetchPrefixWithoutRangeSupport(t *testing.T) {
	t.Parallel()
	payload := bytes.Repeat([]byte("x"), 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// ignores Range entirely
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	err := fetch.NewClient().FetchPrefix(context.Background(), srv.URL+"/pkg.rpm", &buf, 100)
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), 100)
}

func TestClient_DocumentMemoized(t *testing.T) {
	t.Parallel()
	var counter int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strconv.FormatInt(atomic.AddInt64(&counter, 1), 10)))
	}))
	t.Cleanup(srv.Close)

	client := fetch.NewClient()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b, err := client.Document(ctx, srv.URL+"/metalink")
		require.NoError(t, err)
		// never increments because of the memo
		assert.Equal(t, []byte("1"), b)
	}
}
