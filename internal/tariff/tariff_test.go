package tariff

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoclaro/glosa-sub000/constants"
)

var rateColumns = []string{"fraccion", "nico", "pais_origen", "vigente_desde", "descripcion", "umt", "igi", "iva", "ieps"}

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(entsql.OpenDB(dialect.Postgres, db), nil), mock
}

func day(s string) time.Time {
	d, _ := time.Parse(dateLayout, s)
	return d
}

func TestStoreRatesPrefersSpecificRow(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery(`SELECT .* FROM "tarifas" WHERE .*ORDER BY`).
		WillReturnRows(sqlmock.NewRows(rateColumns).
			AddRow("84713001", "", "", "2024-01-01", "Laptops", "PZA", "0", "16", "").
			AddRow("84713001", "00", "CHN", "2023-06-01", "Laptops", "PZA", "5", "16", "").
			AddRow("84713001", "99", "", "2023-01-01", "Otras", "PZA", "10", "16", ""))

	r, err := s.Rates(context.Background(), Query{
		Fraction: "8471.30.01", Nico: "00", Date: day("2024-05-02"), Operation: constants.OperationImport, Origin: "chn",
	})
	require.NoError(t, err)
	assert.Equal(t, "5", r.IGI)
	assert.Equal(t, "CHN", r.Origin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRatesErrors(t *testing.T) {
	q := Query{Fraction: "84713001", Date: day("2024-05-02"), Operation: constants.OperationImport}

	t.Run("not found", func(t *testing.T) {
		s, mock := mockStore(t)
		mock.ExpectQuery(`SELECT .* FROM "tarifas"`).WillReturnRows(sqlmock.NewRows(rateColumns))
		_, err := s.Rates(context.Background(), q)
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("database down", func(t *testing.T) {
		s, mock := mockStore(t)
		mock.ExpectQuery(`SELECT .* FROM "tarifas"`).WillReturnError(errors.New("connection refused"))
		_, err := s.Rates(context.Background(), q)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestStoreExchangeRate(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery(`SELECT .* FROM "tipos_cambio" WHERE .* LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"moneda", "fecha", "tipo_cambio"}).AddRow("USD", "2024-05-01", "16.9875"))

	fx, err := s.ExchangeRate(context.Background(), "usd", day("2024-05-02"))
	require.NoError(t, err)
	assert.Equal(t, "16.9875", fx.Rate)

	mock.ExpectQuery(`SELECT .* FROM "tipos_cambio"`).WillReturnRows(sqlmock.NewRows([]string{"moneda", "fecha", "tipo_cambio"}))
	_, err = s.ExchangeRate(context.Background(), "EUR", day("2024-05-02"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSnapshot(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{DSN: filepath.Join(t.TempDir(), "tarifas.db")}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	insert := `INSERT INTO tarifas (fraccion, nico, operacion, pais_origen, vigente_desde, vigente_hasta, umt, igi, iva) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	require.NoError(t, s.drv.Exec(ctx, insert, []any{"39269099", "", "IMP", "", "2020-01-01", "2023-12-31", "KG", "10", "16"}, nil))
	require.NoError(t, s.drv.Exec(ctx, insert, []any{"39269099", "", "IMP", "", "2024-01-01", nil, "KG", "15", "16"}, nil))
	require.NoError(t, s.drv.Exec(ctx, `INSERT INTO tipos_cambio (moneda, fecha, tipo_cambio) VALUES (?, ?, ?)`, []any{"USD", "2024-04-30", "16.8"}, nil))

	r, err := s.Rates(ctx, Query{Fraction: "3926.90.99", Date: day("2024-03-10"), Operation: constants.OperationImport})
	require.NoError(t, err)
	assert.Equal(t, "15", r.IGI)

	r, err = s.Rates(ctx, Query{Fraction: "3926.90.99", Date: day("2022-03-10"), Operation: constants.OperationImport})
	require.NoError(t, err)
	assert.Equal(t, "10", r.IGI)

	_, err = s.Rates(ctx, Query{Fraction: "3926.90.99", Date: day("2024-03-10"), Operation: constants.OperationExport})
	assert.ErrorIs(t, err, ErrNotFound)

	fx, err := s.ExchangeRate(ctx, "USD", day("2024-05-02"))
	require.NoError(t, err)
	assert.Equal(t, "16.8", fx.Rate)

	require.NoError(t, s.Ping(ctx, time.Second))
}

type fakeLookup struct {
	calls atomic.Int32
}

func (f *fakeLookup) Rates(_ context.Context, q Query) (Rates, error) {
	f.calls.Add(1)
	switch q.Fraction {
	case "boom":
		return Rates{}, errors.New("socket closed")
	case "missing":
		return Rates{}, ErrNotFound
	}
	return Rates{Fraction: q.Fraction, IGI: "5"}, nil
}

func (f *fakeLookup) ExchangeRate(_ context.Context, c string, _ time.Time) (ExchangeRate, error) {
	f.calls.Add(1)
	return ExchangeRate{Currency: c, Rate: "17"}, nil
}

func TestPrefetch(t *testing.T) {
	d := day("2024-05-02")
	ok := Query{Fraction: "84713001", Date: d, Operation: constants.OperationImport}
	dup := Query{Fraction: "8471.30.01", Date: d.Add(3 * time.Hour), Operation: constants.OperationImport}
	boom := Query{Fraction: "boom", Date: d}
	missing := Query{Fraction: "missing", Date: d}

	l := &fakeLookup{}
	snap := Prefetch(context.Background(), l, []Query{ok, dup, boom, missing}, []string{"usd", "USD"}, d, time.Second, nil)
	assert.EqualValues(t, 4, l.calls.Load(), "duplicates are fetched once")

	r, err := snap.Rates(dup)
	require.NoError(t, err)
	assert.Equal(t, "5", r.IGI)

	_, err = snap.Rates(boom)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = snap.Rates(missing)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = snap.Rates(Query{Fraction: "never"})
	assert.ErrorIs(t, err, ErrUnavailable)

	fx, err := snap.ExchangeRate("Usd")
	require.NoError(t, err)
	assert.Equal(t, "17", fx.Rate)
}

func TestPrefetchWithoutLookup(t *testing.T) {
	q := Query{Fraction: "84713001"}
	snap := Prefetch(context.Background(), nil, []Query{q}, []string{"USD"}, time.Now(), 0, nil)
	_, err := snap.Rates(q)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = snap.ExchangeRate("USD")
	assert.ErrorIs(t, err, ErrUnavailable)

	var nilSnap *Snapshot
	_, err = nilSnap.Rates(q)
	assert.ErrorIs(t, err, ErrUnavailable)
}
