package share_fetch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// A Fetcher runs the whole pipeline for one link: match, resolve, derive the target path, download.
type Fetcher struct {
	registry   *ProviderRegistry
	downloader *Downloader
	config     DownloadConfig
	// Bound on one whole Fetch; zero means no bound beyond the context.
	timeout time.Duration
	// Provider every link is matched with; empty means try all of them.
	provider string
}

type FetcherOption func(*Fetcher)

func WithDownloadConfig(config DownloadConfig) FetcherOption {
	return func(f *Fetcher) {
		f.config = config
	}
}

func WithFetchTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = timeout
	}
}

// WithProvider makes the Fetcher match every link with the named provider only.
func WithProvider(name string) FetcherOption {
	return func(f *Fetcher) {
		f.provider = name
	}
}

func NewFetcher(registry *ProviderRegistry, downloader *Downloader, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		registry:   registry,
		downloader: downloader,
		config:     NewDownloadConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve matches rawURL and resolves it, without downloading. The caller must Close the returned target.
func (f *Fetcher) Resolve(ctx context.Context, rawURL string) (*Match, *ResolvedTarget, error) {
	var match *Match
	var err error
	if f.provider != "" {
		match, err = f.registry.MatchWith(f.provider, rawURL)
	} else {
		match, err = f.registry.Match(rawURL)
	}
	if err != nil {
		return nil, nil, err
	}
	logger := Logger(ctx).With(zap.String("provider", match.ProviderName), zap.String("url", rawURL))
	logger.Debug("resolving link", zap.Stringer("kind", match.Source.Link().Kind))
	target, err := match.Source.Resolve(ctx, f.downloader.Client())
	if err != nil {
		return match, nil, asError(err, "resolve", rawURL)
	}
	logger.Debug("resolved link", zap.String("target", target.URL))
	return match, target, nil
}

// Fetch downloads the file behind rawURL to destination, which may be a file path, a directory, or empty for the
// current directory.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, destination string, onProgress ProgressFunc) DownloadResult {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	match, target, err := f.Resolve(ctx, rawURL)
	if err != nil {
		return DownloadResult{Path: destination, Err: err}
	}
	defer target.Close()

	path, err := f.config.GetTargetPath(destination, match, target)
	if err != nil {
		return DownloadResult{Path: destination, Err: NewError(FileSystem, "download", rawURL, err)}
	}
	Logger(ctx).Info("downloading",
		zap.String("provider", match.ProviderName),
		zap.String("url", rawURL),
		zap.String("path", path))
	return f.downloader.Download(ctx, target, path, onProgress)
}

// asError makes sure err is an *Error; anything else from a resolver is treated as a network failure.
func asError(err error, op string, url string) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(NetworkFailure, op, url, err)
}
