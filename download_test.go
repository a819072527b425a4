package share_fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	return bytes.Repeat([]byte("0123456789abcdef"), n/16+1)[:n]
}

func TestDownloader_Download(t *testing.T) {
	assert := assert.New(t)
	data := payload(100_000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "sub", "file.bin")
	var progress []int64
	var expectedTotals []int64
	d := NewDownloader(server.Client(), WithChunkSize(8192))
	result := d.Download(context.Background(), NewResolvedTarget(server.URL), dest, func(downloaded int64, expected int64) {
		progress = append(progress, downloaded)
		expectedTotals = append(expectedTotals, expected)
	})

	require.NoError(t, result.Err)
	assert.True(result.Success)
	assert.Equal(int64(len(data)), result.BytesWritten)
	assert.Equal(dest, result.Path)
	assert.True(result.Kind().IsNone())

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(data, written)

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.Greater(progress[i], progress[i-1], "progress must increase")
	}
	assert.Equal(result.BytesWritten, progress[len(progress)-1])
	for _, expected := range expectedTotals {
		assert.Equal(int64(len(data)), expected)
	}
}

func TestDownloader_EmptyFileReportsProgress(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "empty.bin")
	var progress [][2]int64
	result := NewDownloader(server.Client()).Download(context.Background(), NewResolvedTarget(server.URL), dest, func(downloaded int64, expected int64) {
		progress = append(progress, [2]int64{downloaded, expected})
	})

	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(int64(0), result.BytesWritten)
	assert.Equal([][2]int64{{0, 0}}, progress)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(int64(0), info.Size())
}

func TestDownloader_TruncatesExistingFile(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "new")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(dest, []byte("old content that is longer"), 0644))

	result := NewDownloader(server.Client()).Download(context.Background(), NewResolvedTarget(server.URL), dest, nil)
	require.True(t, result.Success, "%v", result.Err)
	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal("new", string(written))
}

func TestDownloader_HttpError(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	result := NewDownloader(server.Client()).Download(context.Background(), NewResolvedTarget(server.URL), dest, nil)

	assert.False(result.Success)
	assert.ErrorIs(result.Err, HttpError)
	assert.Equal(HttpError, result.Kind().Unwrap())
	assert.NoFileExists(dest)
}

func TestDownloader_NetworkFailure(t *testing.T) {
	assert := assert.New(t)

	result := NewDownloader(http.DefaultClient).Download(context.Background(), NewResolvedTarget("http://127.0.0.1:1/"), filepath.Join(t.TempDir(), "f"), nil)
	assert.False(result.Success)
	assert.ErrorIs(result.Err, NetworkFailure)
}

func TestDownloader_TruncatedStreamLeavesPartialFile(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more than is sent, so the client sees an unexpected EOF.
		w.Header().Set("Content-Length", "1000")
		_, _ = io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "partial.bin")
	result := NewDownloader(server.Client()).Download(context.Background(), NewResolvedTarget(server.URL), dest, nil)

	assert.False(result.Success)
	assert.ErrorIs(result.Err, NetworkFailure)
	assert.Equal(int64(100), result.BytesWritten)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(int64(100), info.Size())
}

func TestDownloader_UsesAttachedResponse(t *testing.T) {
	assert := assert.New(t)
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = io.WriteString(w, "prefetched body")
	}))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	target := NewResolvedTarget(server.URL).WithResponse(resp)
	assert.True(target.HasResponse())

	dest := filepath.Join(t.TempDir(), "file.txt")
	result := NewDownloader(server.Client()).Download(context.Background(), target, dest, nil)
	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(1, requests, "attached response must be reused")
	assert.False(target.HasResponse())
	assert.NoError(target.Close())

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal("prefetched body", string(written))
}

func TestDownloader_Cancelled(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload(64 * 1024))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDownloader(server.Client(), WithChunkSize(1024))
	result := d.Download(ctx, NewResolvedTarget(server.URL), filepath.Join(t.TempDir(), "f"), func(downloaded int64, expected int64) {
		cancel()
	})
	assert.False(result.Success)
	assert.ErrorIs(result.Err, NetworkFailure)
	assert.ErrorIs(result.Err, context.Canceled)
}
