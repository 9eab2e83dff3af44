package tariff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	tableRates = "tarifas"
	tableFX    = "tipos_cambio"
)

// Store serves lookups from the tarifas and tipos_cambio tables. Dates are stored as
// YYYY-MM-DD text so Postgres and SQLite compare them the same way.
type Store struct {
	drv     *entsql.Driver
	dialect string
	logger  *slog.Logger
	close   func()
}

// NewStore wraps an open ent SQL driver.
func NewStore(drv *entsql.Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{drv: drv, dialect: drv.Dialect(), logger: logger}
}

// Close releases the driver and any pool behind it.
func (s *Store) Close() error {
	err := s.drv.Close()
	if s.close != nil {
		s.close()
	}
	return err
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tarifas (
		fraccion TEXT NOT NULL,
		nico TEXT NOT NULL DEFAULT '',
		operacion TEXT NOT NULL,
		pais_origen TEXT NOT NULL DEFAULT '',
		vigente_desde TEXT NOT NULL,
		vigente_hasta TEXT,
		descripcion TEXT NOT NULL DEFAULT '',
		umt TEXT NOT NULL DEFAULT '',
		igi TEXT NOT NULL DEFAULT '',
		iva TEXT NOT NULL DEFAULT '',
		ieps TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tipos_cambio (
		moneda TEXT NOT NULL,
		fecha TEXT NOT NULL,
		tipo_cambio TEXT NOT NULL
	)`,
}

// Migrate creates the lookup tables when missing. Used for local SQLite snapshots.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Rates implements Lookup. Among rows in force on the date, an exact origin and NICO match
// beats a generic row.
func (s *Store) Rates(ctx context.Context, q Query) (Rates, error) {
	start := time.Now()
	fraction := normalizeFraction(q.Fraction)
	day := q.Date.Format(dateLayout)

	sel := entsql.Dialect(s.dialect).
		Select("fraccion", "nico", "pais_origen", "vigente_desde", "descripcion", "umt", "igi", "iva", "ieps").
		From(entsql.Table(tableRates)).
		Where(entsql.And(
			entsql.EQ("fraccion", fraction),
			entsql.EQ("operacion", string(q.Operation)),
			entsql.LTE("vigente_desde", day),
			entsql.Or(entsql.IsNull("vigente_hasta"), entsql.GTE("vigente_hasta", day)),
		)).
		OrderBy(entsql.Desc("vigente_desde"))
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		s.logger.Warn("tariff.rates.error", "fraccion", fraction, "error", err)
		return Rates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var (
		best  Rates
		score = -1
	)
	for rows.Next() {
		var r Rates
		if err := rows.Scan(&r.Fraction, &r.Nico, &r.Origin, &r.ValidFrom, &r.Description, &r.UMT, &r.IGI, &r.IVA, &r.IEPS); err != nil {
			return Rates{}, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		sc, ok := match(r, q)
		if ok && sc > score {
			best, score = r, sc
		}
	}
	if err := rows.Err(); err != nil {
		return Rates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if score < 0 {
		return Rates{}, fmt.Errorf("%w: fraccion %s nico %s on %s", ErrNotFound, fraction, q.Nico, day)
	}
	s.logger.Debug("tariff.rates.ok", "fraccion", fraction, "elapsed_ms", time.Since(start).Milliseconds())
	return best, nil
}

// match scores a row: exact NICO and origin rank above generic rows with empty values. Rows come newest
// first so ties keep the most recent.
func match(r Rates, q Query) (int, bool) {
	score := 0
	switch {
	case r.Nico == q.Nico && q.Nico != "":
		score += 2
	case r.Nico != "":
		return 0, false
	}
	switch {
	case strings.EqualFold(r.Origin, q.Origin) && q.Origin != "":
		score++
	case r.Origin != "":
		return 0, false
	}
	return score, true
}

// ExchangeRate implements Lookup with the latest published rate on or before date.
func (s *Store) ExchangeRate(ctx context.Context, currency string, date time.Time) (ExchangeRate, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	sel := entsql.Dialect(s.dialect).
		Select("moneda", "fecha", "tipo_cambio").
		From(entsql.Table(tableFX)).
		Where(entsql.And(
			entsql.EQ("moneda", cur),
			entsql.LTE("fecha", date.Format(dateLayout)),
		)).
		OrderBy(entsql.Desc("fecha")).
		Limit(1)
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return ExchangeRate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return ExchangeRate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ExchangeRate{}, fmt.Errorf("%w: tipo de cambio %s", ErrNotFound, cur)
	}
	var fx ExchangeRate
	if err := rows.Scan(&fx.Currency, &fx.Date, &fx.Rate); err != nil {
		return ExchangeRate{}, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
	}
	return fx, nil
}

// Ping checks the connection, bounded by timeout when positive.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	db := s.drv.DB()
	if db == nil {
		return errors.New("tariff: no database handle")
	}
	return db.PingContext(ctx)
}

var _ Lookup = (*Store)(nil)
