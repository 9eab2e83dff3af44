// Package tariff answers tariff-rate and exchange-rate questions for validations. The store
// is an external dependency: when it is absent or failing, lookups report ErrUnavailable and
// the affected validations degrade to could-not-verify.
package tariff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cargoclaro/glosa-sub000/constants"
)

var (
	ErrNotFound    = errors.New("tariff: not found")
	ErrUnavailable = errors.New("tariff: lookup unavailable")
)

const dateLayout = "2006-01-02"

// Query identifies one tariff fraction on one date.
type Query struct {
	Fraction  string
	Nico      string
	Date      time.Time
	Operation constants.Operation
	Origin    string
}

// Key is stable across equal queries; dates compare by day.
func (q Query) Key() string {
	return strings.Join([]string{normalizeFraction(q.Fraction), q.Nico, q.Date.Format(dateLayout), string(q.Operation), strings.ToUpper(q.Origin)}, "|")
}

// normalizeFraction strips the dots printed in "8471.30.01".
func normalizeFraction(f string) string {
	return strings.NewReplacer(".", "", " ", "").Replace(strings.TrimSpace(f))
}

// Rates are the duties in force for a fraction. Rates are percentages as printed.
type Rates struct {
	Fraction    string `json:"fraccion"`
	Nico        string `json:"nico,omitempty"`
	Description string `json:"descripcion,omitempty"`
	UMT         string `json:"umt,omitempty"`
	IGI         string `json:"igi,omitempty"`
	IVA         string `json:"iva,omitempty"`
	IEPS        string `json:"ieps,omitempty"`
	Origin      string `json:"pais_origen,omitempty"`
	ValidFrom   string `json:"vigente_desde,omitempty"`
}

// ExchangeRate is the official peso rate of a currency on a date.
type ExchangeRate struct {
	Currency string `json:"moneda"`
	Date     string `json:"fecha"`
	Rate     string `json:"tipo_cambio"`
}

// Lookup is the tariff service contract.
type Lookup interface {
	Rates(ctx context.Context, q Query) (Rates, error)
	ExchangeRate(ctx context.Context, currency string, date time.Time) (ExchangeRate, error)
}

type ratesResult struct {
	rates Rates
	err   error
}

type fxResult struct {
	rate ExchangeRate
	err  error
}

// Snapshot holds lookups resolved ahead of validation so section builders stay pure.
type Snapshot struct {
	mu    sync.RWMutex
	rates map[string]ratesResult
	fx    map[string]fxResult
}

// Rates returns the prefetched answer; a query that was never fetched is ErrUnavailable.
func (s *Snapshot) Rates(q Query) (Rates, error) {
	if s == nil {
		return Rates{}, ErrUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[q.Key()]
	if !ok {
		return Rates{}, ErrUnavailable
	}
	return r.rates, r.err
}

func (s *Snapshot) ExchangeRate(currency string) (ExchangeRate, error) {
	if s == nil {
		return ExchangeRate{}, ErrUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.fx[strings.ToUpper(currency)]
	if !ok {
		return ExchangeRate{}, ErrUnavailable
	}
	return r.rate, r.err
}

// Prefetch resolves every query and currency concurrently. A nil lookup yields a snapshot in
// which every answer is ErrUnavailable. Each call is bounded by timeout when positive.
func Prefetch(ctx context.Context, l Lookup, queries []Query, currencies []string, date time.Time, timeout time.Duration, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	snap := &Snapshot{rates: map[string]ratesResult{}, fx: map[string]fxResult{}}
	if l == nil {
		for _, q := range queries {
			snap.rates[q.Key()] = ratesResult{err: ErrUnavailable}
		}
		for _, c := range currencies {
			snap.fx[strings.ToUpper(c)] = fxResult{err: ErrUnavailable}
		}
		return snap
	}

	start := time.Now()
	bounded := func(ctx context.Context) (context.Context, context.CancelFunc) {
		if timeout > 0 {
			return context.WithTimeout(ctx, timeout)
		}
		return context.WithCancel(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	seen := map[string]bool{}
	for _, q := range queries {
		key := q.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		g.Go(func() error {
			cctx, cancel := bounded(gctx)
			defer cancel()
			r, err := l.Rates(cctx, q)
			if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnavailable) {
				err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			snap.mu.Lock()
			snap.rates[key] = ratesResult{rates: r, err: err}
			snap.mu.Unlock()
			return nil
		})
	}
	for _, c := range currencies {
		cur := strings.ToUpper(c)
		if seen["fx:"+cur] {
			continue
		}
		seen["fx:"+cur] = true
		g.Go(func() error {
			cctx, cancel := bounded(gctx)
			defer cancel()
			r, err := l.ExchangeRate(cctx, cur, date)
			if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnavailable) {
				err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			snap.mu.Lock()
			snap.fx[cur] = fxResult{rate: r, err: err}
			snap.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("tariff.prefetch.ok",
		"fractions", len(snap.rates),
		"currencies", len(snap.fx),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return snap
}
