// Package datasource loads historical candle data into the close-price
// frames the backtest engine consumes. Storage is DuckDB: candle files
// (parquet or CSV) are exposed as a view and pivoted into one column per
// symbol.
package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// PriceSource reads candles out of a DuckDB database.
type PriceSource struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewPriceSource opens a DuckDB database at path; an empty path opens an
// in-memory database.
func NewPriceSource(path string, log *logger.Logger) (*PriceSource, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &PriceSource{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize exposes a candle file as the candles view. Parquet and CSV
// files are supported; the file must carry time, symbol and close columns.
func (d *PriceSource) Initialize(dataPath string) error {
	d.log.Debug("Initializing price source", zap.String("path", dataPath))

	var reader string

	switch strings.ToLower(filepath.Ext(dataPath)) {
	case ".parquet":
		reader = "read_parquet"
	case ".csv":
		reader = "read_csv_auto"
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"unsupported candle file %q, want .parquet or .csv", dataPath)
	}

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS candles;`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing view", err)
	}

	query := fmt.Sprintf(`CREATE VIEW candles AS SELECT * FROM %s('%s');`, reader, dataPath)
	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create candles view", err)
	}

	return nil
}

// Symbols returns the distinct symbols in the candles view, sorted.
func (d *PriceSource) Symbols() ([]string, error) {
	rows, err := d.db.Query("SELECT DISTINCT symbol FROM candles ORDER BY symbol")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating symbols", err)
	}

	return symbols, nil
}

// Count returns the number of candles in the given time range.
func (d *PriceSource) Count(start, end optional.Option[time.Time]) (int, error) {
	builder := d.sq.Select("COUNT(*)").From("candles")

	if s, err := start.Take(); err == nil {
		builder = builder.Where(squirrel.GtOrEq{"time": s})
	}
	if e, err := end.Take(); err == nil {
		builder = builder.Where(squirrel.LtOrEq{"time": e})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count candles", err)
	}

	return count, nil
}

// ClosePrices pivots the candles view into a frame with one close-price
// column per symbol. A (date, symbol) pair with no candle stays zero, which
// the engine treats as untradable on that date.
func (d *PriceSource) ClosePrices(start, end optional.Option[time.Time]) (*frame.Frame, error) {
	symbols, err := d.Symbols()
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeDataNotFound, "candles view holds no symbols")
	}

	index := make(map[string]int, len(symbols))
	for i, symbol := range symbols {
		index[symbol] = i
	}

	builder := d.sq.
		Select("time", "symbol", "close").
		From("candles").
		OrderBy("time", "symbol")

	if s, err := start.Take(); err == nil {
		builder = builder.Where(squirrel.GtOrEq{"time": s})
	}
	if e, err := end.Take(); err == nil {
		builder = builder.Where(squirrel.LtOrEq{"time": e})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query candles", err)
	}
	defer rows.Close()

	byDate := make(map[time.Time][]float64)
	var dates []time.Time

	for rows.Next() {
		var (
			ts         time.Time
			symbol     string
			closePrice float64
		)

		if err := rows.Scan(&ts, &symbol, &closePrice); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan candle", err)
		}

		ts = ts.UTC()

		row, ok := byDate[ts]
		if !ok {
			row = make([]float64, len(symbols))
			byDate[ts] = row
			dates = append(dates, ts)
		}

		row[index[symbol]] = closePrice
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating candles", err)
	}

	if len(dates) == 0 {
		return nil, errors.New(errors.ErrCodeDataNotFound, "no candles in the requested range")
	}

	pivoted := make([][]float64, len(dates))
	for i, date := range dates {
		pivoted[i] = byDate[date]
	}

	prices, err := frame.NewWithRows(symbols, dates, pivoted)
	if err != nil {
		return nil, err
	}

	d.log.Debug("loaded close prices",
		zap.Int("dates", prices.Len()),
		zap.Int("symbols", len(symbols)),
	)

	return prices, nil
}

// Close releases the database handle.
func (d *PriceSource) Close() error {
	return d.db.Close()
}
