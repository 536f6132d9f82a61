package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusPath := flag.String("corpus", "", "path to the JSON scene corpus")
	dataDir := flag.String("data-dir", "", "override index.dataDir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitInput)
	}
	if *dataDir != "" {
		cfg.Index.DataDir = *dataDir
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *corpusPath); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run(ctx context.Context, cfg *config.Config, corpusPath string) error {
	if corpusPath == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "-corpus is required")
	}
	docs, err := corpus.Load(corpusPath)
	if err != nil {
		return err
	}
	slog.Info("corpus loaded", "path", corpusPath, "docs", len(docs))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}
	res, buildErr := indexer.NewEngine(cfg, m).Build(ctx, docs)
	if buildErr == nil && cfg.Cache.Enabled {
		invalidateCache(ctx, cfg)
	}
	if m != nil && cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.Error("metrics export failed", "path", cfg.Metrics.Textfile, "error", err)
		}
	}
	if buildErr != nil {
		return buildErr
	}
	fmt.Printf("indexed %d documents, %d terms into %s (compressed %d bytes, uncompressed %d bytes)\n",
		res.Docs, res.Terms, cfg.Index.DataDir, res.CompressedBytes, res.UncompressedBytes)
	return nil
}

// invalidateCache drops postings cached from the previous build. A cache
// that cannot be reached is logged and skipped.
func invalidateCache(ctx context.Context, cfg *config.Config) {
	client, err := pkgredis.Connect(ctx, cfg.Redis, resilience.Backoff{Attempts: 3})
	if err != nil {
		slog.Warn("postings cache unavailable, skipping invalidation", "error", err)
		return
	}
	defer client.Close()
	if _, err := cache.New(client, cfg.Redis.CacheTTL).Invalidate(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("postings cache invalidation failed", "error", err)
	}
}
