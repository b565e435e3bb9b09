package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/food-orders/internal/domain/coupon"
	"github.com/xenking/food-orders/internal/domain/pricing"
)

const bloomFPR = 0.001

// Stats counts skipped input lines.
type Stats struct {
	Duplicates int
	Invalid    int
	Expired    int
}

// parseLine parses "code,discountPercentage,minOrders,expiresAt" where
// expiresAt is RFC 3339. Codes are normalized to upper case.
func parseLine(line string) (coupon.Coupon, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return coupon.Coupon{}, errors.Errorf("expected 4 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	code := strings.ToUpper(fields[0])
	if code == "" {
		return coupon.Coupon{}, errors.New("empty code")
	}
	pct, err := decimal.NewFromString(fields[1])
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse discount")
	}
	if err := pricing.ValidatePercentage(pct); err != nil {
		return coupon.Coupon{}, err
	}
	minOrders, err := strconv.Atoi(fields[2])
	if err != nil || minOrders < 0 {
		return coupon.Coupon{}, errors.Errorf("invalid min orders %q", fields[2])
	}
	expiresAt, err := time.Parse(time.RFC3339, fields[3])
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse expiry")
	}

	return coupon.Coupon{
		ID:                 uuid.NewString(),
		Code:               code,
		DiscountPercentage: pct,
		MinOrders:          minOrders,
		ExpiresAt:          expiresAt,
	}, nil
}

// findRepeats streams every file once and feeds valid codes to a bloom
// filter. Codes the filter reports as possibly seen are returned; every
// other code occurs exactly once across the input.
func findRepeats(ctx context.Context, files []string, expected uint, now time.Time) (map[string]struct{}, error) {
	var (
		filter  = bloom.NewWithEstimates(max(expected, 1), bloomFPR)
		repeats = make(map[string]struct{})
		count   uint64
	)
	err := scanFiles(ctx, files, func(p parsed) {
		if p.err != nil || p.coupon.Expired(now) {
			return
		}
		count++
		if filter.TestAndAddString(p.coupon.Code) {
			repeats[p.coupon.Code] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}

	slog.Info("pass 1 complete",
		slog.Uint64("codes", count),
		slog.Int("candidates", len(repeats)),
	)
	return repeats, nil
}

// dedup keeps the first coupon of every repeated code. Codes outside
// repeats are unique and are never stored.
type dedup struct {
	repeats map[string]struct{}
	seen    map[string]struct{}
}

func newDedup(repeats map[string]struct{}) *dedup {
	return &dedup{
		repeats: repeats,
		seen:    make(map[string]struct{}, len(repeats)),
	}
}

// add reports whether code was not seen before.
func (d *dedup) add(code string) bool {
	if _, ok := d.repeats[code]; !ok {
		return true
	}
	if _, ok := d.seen[code]; ok {
		return false
	}
	d.seen[code] = struct{}{}
	return true
}

type parsed struct {
	coupon coupon.Coupon
	err    error
	file   string
	line   int
}

// readCoupons returns the unique, unexpired coupons of all files. The first
// pass finds candidate repeats, the second pass checks only those exactly.
// Invalid lines are logged and skipped.
func readCoupons(ctx context.Context, files []string, expected uint, now time.Time) ([]coupon.Coupon, Stats, error) {
	repeats, err := findRepeats(ctx, files, expected, now)
	if err != nil {
		return nil, Stats{}, err
	}

	var (
		stats   Stats
		coupons []coupon.Coupon
		seen    = newDedup(repeats)
	)
	err = scanFiles(ctx, files, func(p parsed) {
		switch {
		case p.err != nil:
			stats.Invalid++
			slog.Warn("skipping invalid line",
				slog.String("file", p.file),
				slog.Int("line", p.line),
				slog.String("error", p.err.Error()),
			)
		case p.coupon.Expired(now):
			stats.Expired++
		case !seen.add(p.coupon.Code):
			stats.Duplicates++
		default:
			coupons = append(coupons, p.coupon)
		}
	})
	if err != nil {
		return nil, stats, err
	}
	return coupons, stats, nil
}

// scanFiles decodes files concurrently and calls fn for every line from a
// single goroutine.
func scanFiles(ctx context.Context, files []string, fn func(parsed)) error {
	out := make(chan parsed, 1024)

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(func() error {
			return streamFile(gctx, path, out)
		})
	}
	go func() {
		_ = g.Wait()
		close(out)
	}()

	for p := range out {
		fn(p)
	}
	return g.Wait()
}

func streamFile(ctx context.Context, path string, out chan<- parsed) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	if err := scanLines(ctx, path, gz, out); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

func scanLines(ctx context.Context, name string, r io.Reader, out chan<- parsed) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		c, err := parseLine(text)
		select {
		case out <- parsed{coupon: c, err: err, file: name, line: line}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
