package sqlite

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/pkg/logger"
)

// Required OurAirports airports.csv columns
var airportColumns = []string{"ident", "name", "latitude_deg", "longitude_deg", "elevation_ft"}

// ImportAirportsCSV loads an OurAirports-style airports.csv into the store.
// Rows with unparseable coordinates are skipped. Returns the number of imported rows.
func (s *StationStorage) ImportAirportsCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range airportColumns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("airports csv missing column %q", col)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stations (ident, name, latitude, longitude, elevation_ft)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ident) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation_ft = excluded.elevation_ft`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	imported, skipped := 0, 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("failed to read csv record: %w", err)
		}

		field := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		ident := stations.NormalizeCode(field("ident"))
		lat, latErr := strconv.ParseFloat(field("latitude_deg"), 64)
		lon, lonErr := strconv.ParseFloat(field("longitude_deg"), 64)
		if ident == "" || latErr != nil || lonErr != nil {
			skipped++
			continue
		}

		var elevation any
		if e, err := strconv.Atoi(field("elevation_ft")); err == nil {
			elevation = e
		}

		if _, err := stmt.ExecContext(ctx, ident, field("name"), lat, lon, elevation); err != nil {
			return imported, fmt.Errorf("failed to insert station %s: %w", ident, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return imported, fmt.Errorf("failed to commit airports import: %w", err)
	}

	s.logger.Info("Imported airports",
		logger.Int("imported", imported),
		logger.Int("skipped", skipped))

	return imported, nil
}

// ImportWindsAloftList reads one station code per line ('#' starts a comment)
// and flags those stations as winds-aloft publishers. Returns the number flagged.
func (s *StationStorage) ImportWindsAloftList(ctx context.Context, r io.Reader) (int, error) {
	var codes []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if code := stations.NormalizeCode(line); code != "" {
			codes = append(codes, code)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read winds aloft station list: %w", err)
	}

	missing, err := s.MarkWindsAloft(ctx, codes)
	if err != nil {
		return 0, err
	}
	return len(codes) - len(missing), nil
}
