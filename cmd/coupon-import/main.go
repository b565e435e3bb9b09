package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/food-orders/internal/domain/coupon"
	"github.com/xenking/food-orders/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		workers     int
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzip coupon files")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob of coupon files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 8, "concurrent database writers")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of distinct codes, sizes the bloom filter")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and de-duplicate without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		slog.Error("invalid pattern", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Error("no coupon files found", slog.String("dir", dataDir), slog.String("pattern", pattern))
		os.Exit(1)
	}

	start := time.Now()
	coupons, stats, err := readCoupons(ctx, files, expected, time.Now())
	if err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("coupon files read",
		slog.Int("files", len(files)),
		slog.Int("coupons", len(coupons)),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("invalid", stats.Invalid),
		slog.Int("expired", stats.Expired),
		slog.Duration("took", time.Since(start)),
	)

	if dryRun {
		return
	}
	if err := writeCoupons(ctx, databaseURL, coupons, workers); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("coupon import completed successfully", slog.Duration("took", time.Since(start)))
}

// writeCoupons upserts coupons with a bounded number of concurrent writers.
func writeCoupons(ctx context.Context, databaseURL string, coupons []coupon.Coupon, workers int) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	repo := postgres.NewCouponRepository(pool)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range coupons {
		c := &coupons[i]
		g.Go(func() error {
			return repo.Upsert(ctx, c)
		})
		if (i+1)%10_000 == 0 {
			slog.Info("write progress", slog.Int("queued", i+1), slog.Int("total", len(coupons)))
		}
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	return nil
}
