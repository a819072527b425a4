package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/share-fetch"
	"github.com/alanbriolat/share-fetch/async"
	"github.com/alanbriolat/share-fetch/internal/batch"
	"github.com/alanbriolat/share-fetch/internal/config"
	"github.com/alanbriolat/share-fetch/internal/httpclient"
	"github.com/alanbriolat/share-fetch/internal/logger"
	_ "github.com/alanbriolat/share-fetch/providers"
)

func main() {
	bootLogger, err := logger.New("info", "text")
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	zap.ReplaceGlobals(bootLogger)
	undoRedirect := zap.RedirectStdLog(bootLogger)
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := newApp(func(l *zap.Logger) {
		zap.ReplaceGlobals(l)
		undoRedirect()
		undoRedirect = zap.RedirectStdLog(l)
	})
	result := async.Run(func() error { return app.RunContext(ctx, os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		err = <-result
	}
	if err != nil {
		zap.L().Fatal(err.Error())
	}
}

// newApp builds the CLI; setLogger installs the logger built from the loaded configuration.
func newApp(setLogger func(l *zap.Logger)) *cli.App {
	providerUsage := fmt.Sprintf("match links with provider `NAME` only (one of: %s)",
		strings.Join(share_fetch.DefaultProviderRegistry.List(), ", "))

	return &cli.App{
		Name:      "share-fetch",
		Usage:     "download files from WeTransfer and Google Drive share links",
		ArgsUsage: "<url|links-file> [destination]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "load configuration from YAML `FILE`",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "bound connecting and waiting for each response",
			},
			&cli.DurationFlag{
				Name:  "download-timeout",
				Usage: "bound each whole download (0 for none)",
			},
			&cli.BoolFlag{
				Name:  "insecure-skip-verify",
				Usage: "UNSAFE: disable TLS certificate verification",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "read the download stream in chunks of `BYTES`",
			},
			&cli.StringFlag{
				Name:  "name-template",
				Usage: "file name `TEMPLATE` used when saving into a directory, e.g. \"{{.ProviderName}}-{{.Filename}}\"",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: providerUsage,
			},
			&cli.StringFlag{
				Name:  "proxy",
				Usage: "send requests through proxy `URL`",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "don't show a progress bar",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				_ = cli.ShowAppHelp(c)
				return cli.Exit("expected a URL or links file, and an optional destination", 1)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			l, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			setLogger(l)
			ctx := share_fetch.WithLogger(c.Context, l)

			fetcher, err := newFetcher(cfg, c.String("provider"))
			if err != nil {
				return err
			}
			input, destination := c.Args().Get(0), c.Args().Get(1)
			if isRegularFile(input) {
				return runBatch(ctx, c, fetcher, input, destination)
			}
			return runSingle(ctx, c, fetcher, input, destination)
		},
		HideHelpCommand: true,
	}
}

// loadConfig reads the configuration and applies any flags that were set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("timeout") {
		cfg.HTTP.Timeout = c.Duration("timeout").String()
	}
	if c.IsSet("download-timeout") {
		cfg.HTTP.DownloadTimeout = c.Duration("download-timeout").String()
	}
	if c.IsSet("insecure-skip-verify") {
		cfg.HTTP.InsecureSkipVerify = c.Bool("insecure-skip-verify")
	}
	if c.IsSet("proxy") {
		cfg.HTTP.Proxy = c.String("proxy")
	}
	if c.IsSet("chunk-size") {
		cfg.Download.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("name-template") {
		cfg.Download.NameTemplate = c.String("name-template")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFetcher(cfg *config.Config, provider string) (*share_fetch.Fetcher, error) {
	registry := &share_fetch.DefaultProviderRegistry
	options := []share_fetch.FetcherOption{share_fetch.WithFetchTimeout(cfg.HTTP.GetDownloadTimeout())}
	if provider != "" {
		if err := registry.CheckProvider(provider); err != nil {
			return nil, err
		}
		options = append(options, share_fetch.WithProvider(provider))
	}

	client, err := httpclient.New(httpclient.Options{
		Timeout:            cfg.HTTP.GetTimeout(),
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		UserAgent:          cfg.HTTP.UserAgent,
		Proxy:              cfg.HTTP.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	downloadConfig, err := share_fetch.NewDownloadConfigTemplate(cfg.Download.NameTemplate)
	if err != nil {
		return nil, err
	}
	downloader := share_fetch.NewDownloader(client, share_fetch.WithChunkSize(cfg.Download.ChunkSize))
	options = append(options, share_fetch.WithDownloadConfig(downloadConfig))
	return share_fetch.NewFetcher(registry, downloader, options...), nil
}

func runSingle(ctx context.Context, c *cli.Context, fetcher *share_fetch.Fetcher, source string, destination string) error {
	logger := share_fetch.Logger(ctx).Sugar()
	logger.Infof("Downloading from %s", source)

	bar := newProgressBar(c, "downloading")
	result := fetcher.Fetch(ctx, source, destination, progressFunc(bar))
	finishProgressBar(bar)
	if !result.Success {
		return result.Err
	}
	logger.Infof("Download complete: %s (%d bytes)", result.Path, result.BytesWritten)
	return nil
}

func runBatch(ctx context.Context, c *cli.Context, fetcher *share_fetch.Fetcher, linksFile string, destination string) error {
	lines, err := batch.ReadLinksFile(linksFile)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return errors.New("no links found in " + linksFile)
	}

	var bar *progressbar.ProgressBar
	runner := batch.NewRunner(fetcher, destination)
	runner.Progress = func(job *batch.Job) share_fetch.ProgressFunc {
		bar = newProgressBar(c, fmt.Sprintf("line %d", job.Line))
		return progressFunc(bar)
	}
	runner.Done = func(job *batch.Job) {
		finishProgressBar(bar)
		bar = nil
		fmt.Fprintln(c.App.Writer, job.Report())
	}

	summary, err := runner.Run(ctx, lines)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "[SUMMARY] %s\n", summary)
	if err := summary.Err(); err != nil {
		return fmt.Errorf("batch incomplete (%s): %w", summary, err)
	}
	return nil
}

func newProgressBar(c *cli.Context, description string) *progressbar.ProgressBar {
	if c.Bool("quiet") {
		return nil
	}
	return progressbar.DefaultBytes(-1, description)
}

func progressFunc(bar *progressbar.ProgressBar) share_fetch.ProgressFunc {
	if bar == nil {
		return nil
	}
	return func(downloaded int64, expected int64) {
		if expected > 0 && bar.GetMax() != int(expected) {
			bar.ChangeMax(int(expected))
		}
		_ = bar.Set(int(downloaded))
	}
}

func finishProgressBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
