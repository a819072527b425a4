package wetransfer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/share-fetch"
	"github.com/alanbriolat/share-fetch/internal/testutil"
)

func TestExtractTransfer(t *testing.T) {
	tests := []struct {
		input   string
		want    Transfer
		wantErr bool
	}{
		{"https://wetransfer.com/downloads/abc123/def456", Transfer{ID: "abc123", SecurityHash: "def456"}, false},
		{"https://wetransfer.com/downloads/abc123/rcp789/def456", Transfer{ID: "abc123", RecipientID: "rcp789", SecurityHash: "def456"}, false},
		{"https://wetransfer.com/downloads/abc123/def456?utm_source=x", Transfer{ID: "abc123", SecurityHash: "def456"}, false},
		{"https://wetransfer.com/downloads/abc123", Transfer{}, true},
		{"https://wetransfer.com/", Transfer{}, true},
		{"https://wetransfer.com/downloads/abc%20123/def456", Transfer{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			u, err := url.Parse(tt.input)
			require.NoError(t, err)
			got, err := ExtractTransfer(u)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	assert := assert.New(t)

	source, err := Match(share_fetch.Classify("https://we.tl/t-ABC123"))
	assert.NoError(err)
	assert.NotNil(source)

	source, err = Match(share_fetch.Classify("https://wetransfer.com/downloads/abc123/def456"))
	assert.NoError(err)
	assert.NotNil(source)

	_, err = Match(share_fetch.Classify("https://drive.google.com/file/d/XYZ789/view"))
	assert.Error(err)
}

// fakeWeTransfer serves a short link redirect, the download API and the file download.
type fakeWeTransfer struct {
	t        *testing.T
	status   int
	response string
	requests []downloadRequest
	files    int
}

func (f *fakeWeTransfer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch host := r.Header.Get("X-Original-Host"); {
	case host == "we.tl" && r.URL.Path == "/t-ABC123":
		http.Redirect(w, r, "https://wetransfer.com/downloads/abc123/def456", http.StatusFound)
	case host == "wetransfer.com" && r.URL.Path == "/downloads/abc123/def456":
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>transfer</body></html>")
	case host == "wetransfer.com" && r.URL.Path == "/api/v4/transfers/abc123/download":
		assert.Equal(f.t, http.MethodPost, r.Method)
		assert.Equal(f.t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		var req downloadRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.requests = append(f.requests, req)
		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = io.WriteString(w, f.response)
	case host == "download.wetransfer.com" && (r.URL.Path == "/files/report.zip" || r.URL.Path == "/files/  "):
		f.files++
		_, _ = io.WriteString(w, "zip content")
	default:
		http.NotFound(w, r)
	}
}

func newFetcher(t *testing.T, handler http.Handler) *share_fetch.Fetcher {
	_, client := testutil.NewServer(t, handler)
	registry, err := share_fetch.NewProviderRegistry(New())
	require.NoError(t, err)
	return share_fetch.NewFetcher(registry, share_fetch.NewDownloader(client))
}

func TestFetch_ShortAndFullLinksAreEquivalent(t *testing.T) {
	fake := &fakeWeTransfer{t: t, response: `{"direct_link": "https://download.wetransfer.com/files/report.zip?token=x"}`}
	fetcher := newFetcher(t, fake)

	for _, input := range []string{"https://we.tl/t-ABC123", "https://wetransfer.com/downloads/abc123/def456"} {
		t.Run(input, func(t *testing.T) {
			assert := assert.New(t)
			dir := t.TempDir()
			result := fetcher.Fetch(context.Background(), input, dir, nil)
			require.True(t, result.Success, "%v", result.Err)
			assert.Equal(filepath.Join(dir, "report.zip"), result.Path)
			content, err := os.ReadFile(result.Path)
			require.NoError(t, err)
			assert.Equal("zip content", string(content))
		})
	}

	require.Len(t, fake.requests, 2)
	assert.Equal(t, fake.requests[0], fake.requests[1])
	assert.Equal(t, downloadRequest{SecurityHash: "def456", Intent: "entire_transfer"}, fake.requests[0])
	assert.Equal(t, 2, fake.files)
}

func TestFetch_RecipientID(t *testing.T) {
	fake := &fakeWeTransfer{t: t, response: `{"direct_link": "https://download.wetransfer.com/files/report.zip"}`}
	fetcher := newFetcher(t, fake)

	result := fetcher.Fetch(context.Background(), "https://wetransfer.com/downloads/abc123/rcp789/def456", t.TempDir(), nil)
	require.True(t, result.Success, "%v", result.Err)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, downloadRequest{SecurityHash: "def456", RecipientID: "rcp789", Intent: "entire_transfer"}, fake.requests[0])
}

func TestFetch_Expired(t *testing.T) {
	for _, input := range []string{"https://we.tl/t-ABC123", "https://wetransfer.com/downloads/abc123/def456"} {
		t.Run(input, func(t *testing.T) {
			assert := assert.New(t)
			fake := &fakeWeTransfer{t: t, status: http.StatusNotFound, response: `{"message": "This transfer has expired"}`}
			fetcher := newFetcher(t, fake)

			dir := t.TempDir()
			result := fetcher.Fetch(context.Background(), input, dir, nil)
			assert.False(result.Success)
			assert.Equal(share_fetch.ApiRejected, result.Kind().Unwrap())
			assert.Contains(result.Err.Error(), "This transfer has expired")
			assert.Len(fake.requests, 1)
			assert.Equal(0, fake.files)
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(entries)
		})
	}
}

func TestFetch_UnusableDirectLinkName(t *testing.T) {
	assert := assert.New(t)
	fake := &fakeWeTransfer{t: t, response: `{"direct_link": "https://download.wetransfer.com/files/%20%20"}`}
	fetcher := newFetcher(t, fake)

	dir := t.TempDir()
	result := fetcher.Fetch(context.Background(), "https://wetransfer.com/downloads/abc123/def456", dir, nil)
	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(filepath.Join(dir, FallbackFilename), result.Path)
	assert.Equal(1, fake.files)
}

func TestFetch_MissingDirectLink(t *testing.T) {
	assert := assert.New(t)
	fake := &fakeWeTransfer{t: t, response: `{"state": "downloadable"}`}
	fetcher := newFetcher(t, fake)

	result := fetcher.Fetch(context.Background(), "https://wetransfer.com/downloads/abc123/def456", t.TempDir(), nil)
	assert.False(result.Success)
	assert.Equal(share_fetch.ApiRejected, result.Kind().Unwrap())
	assert.Contains(result.Err.Error(), "direct_link")
}

func TestFetch_ShortLinkNotFound(t *testing.T) {
	assert := assert.New(t)
	fetcher := newFetcher(t, &fakeWeTransfer{t: t})

	result := fetcher.Fetch(context.Background(), "https://we.tl/t-MISSING", t.TempDir(), nil)
	assert.False(result.Success)
	assert.Equal(share_fetch.HttpError, result.Kind().Unwrap())
}
