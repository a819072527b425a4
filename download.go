package share_fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/alanbriolat/share-fetch/generic"
)

const DefaultChunkSize = 32 * 1024

// ProgressFunc is called after every chunk written, with the running total and the expected total (-1 if unknown).
type ProgressFunc func(downloaded int64, expected int64)

// DownloadResult is the terminal outcome of a single download.
type DownloadResult struct {
	Success      bool
	BytesWritten int64
	Path         string
	Err          error
}

// Kind returns the ErrorKind of a failed download.
func (r DownloadResult) Kind() generic.Option[ErrorKind] {
	if r.Err == nil {
		return generic.None[ErrorKind]()
	}
	return KindOf(r.Err)
}

type downloaderConfig struct {
	chunkSize int
}

type DownloaderOption func(*downloaderConfig)

// WithChunkSize sets the size of each read from the response body; non-positive sizes are ignored.
func WithChunkSize(size int) DownloaderOption {
	return func(c *downloaderConfig) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// A Downloader streams a ResolvedTarget to a file.
type Downloader struct {
	client *http.Client
	config downloaderConfig
}

func NewDownloader(client *http.Client, opts ...DownloaderOption) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	config := downloaderConfig{
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Downloader{client: client, config: config}
}

// Client returns the HTTP client used for downloads.
func (d *Downloader) Client() *http.Client {
	return d.client
}

// Download fetches target and writes it to destinationPath (created or truncated), calling onProgress after each
// chunk. A partially written file is left in place on failure.
func (d *Downloader) Download(ctx context.Context, target *ResolvedTarget, destinationPath string, onProgress ProgressFunc) DownloadResult {
	result := DownloadResult{Path: destinationPath}
	fail := func(kind ErrorKind, err error) DownloadResult {
		result.Err = NewError(kind, "download", target.URL, err)
		return result
	}

	resp, err := d.open(ctx, target)
	if err != nil {
		return fail(NetworkFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(HttpError, fmt.Errorf("unexpected status %s", resp.Status))
	}

	f, err := createFile(destinationPath)
	if err != nil {
		return fail(FileSystem, fmt.Errorf("failed to open target file: %w", err))
	}
	defer f.Close()

	Logger(ctx).Debug("streaming download",
		zap.String("url", target.URL),
		zap.String("path", destinationPath),
		zap.Int64("content_length", resp.ContentLength))

	expected := resp.ContentLength
	if expected < 0 {
		expected = -1
	}
	stream := &readerContext{ctx: ctx, r: resp.Body}
	buf := make([]byte, d.config.chunkSize)
	reported := false
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fail(FileSystem, fmt.Errorf("failed to write target file: %w", err))
			}
			result.BytesWritten += int64(n)
			if onProgress != nil {
				onProgress(result.BytesWritten, expected)
				reported = true
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		} else if readErr != nil {
			return fail(NetworkFailure, fmt.Errorf("failed to read stream: %w", readErr))
		}
	}
	if err := f.Close(); err != nil {
		return fail(FileSystem, fmt.Errorf("failed to close target file: %w", err))
	}
	// An empty file still gets its final total.
	if onProgress != nil && !reported {
		onProgress(result.BytesWritten, expected)
	}

	result.Success = true
	return result
}

func (d *Downloader) open(ctx context.Context, target *ResolvedTarget) (*http.Response, error) {
	if resp := target.takeResponse(); resp != nil {
		return resp, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	return resp, nil
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0664)
}
