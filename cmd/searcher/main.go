package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/resilience"
)

const usage = `usage: searcher [flags] <command> [args]

commands:
  retrieve <term>     postings of term, grouped by document
  best-match <term>   term with the highest Dice coefficient
  dice <a> <b>        Dice coefficient of two terms
  stats <term>        document and collection frequency of term
  verify              integrity check of every store
`

type retrieveResult struct {
	Term     string                  `json:"term"`
	Mode     executor.Mode           `json:"mode"`
	DocFreq  int                     `json:"docFreq"`
	Postings []executor.DocPositions `json:"postings"`
}

type diceResult struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dataDir := flag.String("data-dir", "", "override index.dataDir")
	mode := flag.String("mode", "", "retrieval mode: compressed or uncompressed")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitInput)
	}
	if *dataDir != "" {
		cfg.Index.DataDir = *dataDir
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "searcher: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run(ctx context.Context, cfg *config.Config, modeFlag string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return apperrors.New(apperrors.ErrInvalidInput, "missing command")
	}
	cmd, args := args[0], args[1:]
	var mode executor.Mode
	if modeFlag != "" {
		var err error
		if mode, err = executor.ParseMode(modeFlag); err != nil {
			return err
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}
	opts := executor.Options{Metrics: m}
	if cfg.Cache.Enabled {
		client, err := pkgredis.Connect(ctx, cfg.Redis, resilience.Backoff{Attempts: 3})
		if err != nil {
			slog.Warn("postings cache unavailable, reading stores directly", "error", err)
		} else {
			defer client.Close()
			opts.Cache = cache.New(client, cfg.Redis.CacheTTL)
		}
	}

	exec, err := executor.Open(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer exec.Close()
	defer func() {
		if m != nil && cfg.Metrics.Textfile != "" {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				slog.Error("metrics export failed", "path", cfg.Metrics.Textfile, "error", err)
			}
		}
	}()

	switch cmd {
	case "retrieve":
		if err := wantArgs(cmd, args, 1); err != nil {
			return err
		}
		list, err := exec.Retrieve(ctx, args[0], mode)
		if err != nil {
			return err
		}
		groups := executor.GroupByDoc(list)
		for i := range groups {
			groups[i].Name, _ = exec.DocName(groups[i].DocID)
		}
		if mode == "" {
			mode = executor.Mode(cfg.Index.DefaultMode)
		}
		return printJSON(retrieveResult{Term: args[0], Mode: mode, DocFreq: len(groups), Postings: groups})
	case "best-match":
		if err := wantArgs(cmd, args, 1); err != nil {
			return err
		}
		match, err := exec.BestMatch(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(match)
	case "dice":
		if err := wantArgs(cmd, args, 2); err != nil {
			return err
		}
		score, err := exec.Dice(args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(diceResult{A: args[0], B: args[1], Score: score})
	case "stats":
		if err := wantArgs(cmd, args, 1); err != nil {
			return err
		}
		st, err := exec.Stats(args[0])
		if err != nil {
			return err
		}
		return printJSON(st)
	case "verify":
		if err := wantArgs(cmd, args, 0); err != nil {
			return err
		}
		report := exec.Verify(ctx)
		if err := printJSON(report); err != nil {
			return err
		}
		return report.Err()
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "unknown command %q", cmd)
	}
}

func wantArgs(cmd string, args []string, n int) error {
	if len(args) != n {
		return apperrors.Newf(apperrors.ErrInvalidInput, "%s takes %d argument(s), got %d", cmd, n, len(args))
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
