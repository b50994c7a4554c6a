package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/pkg/logger"
	_ "modernc.org/sqlite"
)

// StationStorage is a SQLite-backed stations.Directory
type StationStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

var _ stations.Directory = (*StationStorage)(nil)

// NewStationStorage opens (or creates) the station database at dbPath
func NewStationStorage(dbPath string, log *logger.Logger) (*StationStorage, error) {
	storageLogger := log.Named("sqlite-stations")

	storageLogger.Info("Initializing SQLite station storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initStationSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &StationStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *StationStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initStationSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stations (
			ident TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			elevation_ft INTEGER,
			winds_aloft INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create stations table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_stations_winds_aloft ON stations(winds_aloft)`)
	if err != nil {
		return fmt.Errorf("failed to create winds_aloft index: %w", err)
	}

	return nil
}

// Lookup returns the station with the given code
func (s *StationStorage) Lookup(ctx context.Context, code string) (stations.Station, error) {
	code = stations.NormalizeCode(code)

	row := s.db.QueryRowContext(ctx,
		`SELECT ident, name, latitude, longitude, elevation_ft, winds_aloft
		FROM stations WHERE ident = ?`, code)

	st, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return stations.Station{}, fmt.Errorf("%w: %s", stations.ErrNotFound, code)
	}
	if err != nil {
		return stations.Station{}, fmt.Errorf("failed to query station %s: %w", code, err)
	}
	return st, nil
}

// All returns every station ordered by ident
func (s *StationStorage) All(ctx context.Context) ([]stations.Station, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ident, name, latitude, longitude, elevation_ft, winds_aloft
		FROM stations ORDER BY ident`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var result []stations.Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stations: %w", err)
	}
	return result, nil
}

// Upsert inserts or replaces a station record
func (s *StationStorage) Upsert(ctx context.Context, st stations.Station) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stations (ident, name, latitude, longitude, elevation_ft, winds_aloft)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ident) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation_ft = excluded.elevation_ft,
			winds_aloft = MAX(stations.winds_aloft, excluded.winds_aloft)`,
		stations.NormalizeCode(st.Code), st.Name, st.Latitude, st.Longitude,
		nullableInt(st.ElevationFeet), boolToInt(st.PublishesWindsAloft))
	if err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", st.Code, err)
	}
	return nil
}

// MarkWindsAloft flags the given codes as winds-aloft publishing stations.
// Unknown codes are skipped and reported in the returned slice.
func (s *StationStorage) MarkWindsAloft(ctx context.Context, codes []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var missing []string
	for _, code := range codes {
		res, err := tx.ExecContext(ctx, `UPDATE stations SET winds_aloft = 1 WHERE ident = ?`,
			stations.NormalizeCode(code))
		if err != nil {
			return nil, fmt.Errorf("failed to flag station %s: %w", code, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			missing = append(missing, code)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit winds aloft flags: %w", err)
	}

	if len(missing) > 0 {
		s.logger.Warn("Winds aloft stations missing from directory",
			logger.Int("count", len(missing)))
	}
	return missing, nil
}

// Count returns the number of stored stations
func (s *StationStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stations: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (stations.Station, error) {
	var (
		st        stations.Station
		elevation sql.NullInt64
		winds     int
	)
	if err := row.Scan(&st.Code, &st.Name, &st.Latitude, &st.Longitude, &elevation, &winds); err != nil {
		return stations.Station{}, err
	}
	if elevation.Valid {
		e := int(elevation.Int64)
		st.ElevationFeet = &e
	}
	st.PublishesWindsAloft = winds != 0
	return st, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
