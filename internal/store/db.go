// Package store persists pipeline data in a local sqlite database: sensor
// readings, area risk profiles, resident records, forecast history, and
// issued warnings.
//
// The forecast loop opens a fresh handle every cycle and closes it at cycle
// end, so a broken connection never outlives the cycle that broke it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/floodwatch/flood-alert-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id INTEGER NOT NULL DEFAULT 1,
	temperature REAL NOT NULL,
	humidity REAL NOT NULL,
	wind_speed REAL NOT NULL,
	pressure REAL NOT NULL,
	recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_location_time ON readings(location_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS area_risk_profiles (
	area_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	land_type TEXT NOT NULL,
	risk_multiplier REAL NOT NULL CHECK (risk_multiplier > 0),
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS residents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_residents_address ON residents(address);

CREATE TABLE IF NOT EXISTS forecasts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	amount_mm REAL NOT NULL,
	duration_min REAL NOT NULL,
	rate_mm_per_hour REAL NOT NULL,
	intensity TEXT NOT NULL,
	degraded INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS warnings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	area_id INTEGER NOT NULL,
	area_name TEXT NOT NULL,
	land_type TEXT NOT NULL DEFAULT '',
	risk_level TEXT NOT NULL,
	message TEXT NOT NULL,
	rain_rate REAL NOT NULL,
	duration_min REAL NOT NULL,
	intensity TEXT NOT NULL,
	issued_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_warnings_area_time ON warnings(area_id, issued_at DESC);
`

// DB wraps the sqlite handle with typed repository methods.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Set pragmas for performance.
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout=5000")

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

// InsertReading appends one sensor reading row.
func (d *DB) InsertReading(ctx context.Context, locationID int64, r domain.Reading) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO readings (location_id, temperature, humidity, wind_speed, pressure, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		locationID, r.Temperature, r.Humidity, r.WindSpeed, r.Pressure, r.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// RecentReadings returns up to n of the newest readings for a location,
// reordered oldest→newest. Short histories return fewer rows, never an error.
func (d *DB) RecentReadings(ctx context.Context, locationID int64, n int) ([]domain.Reading, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, temperature, humidity, wind_speed, pressure, recorded_at
		FROM readings
		WHERE location_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, locationID, n)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var newest []domain.Reading
	for rows.Next() {
		var r domain.Reading
		if err := rows.Scan(&r.ID, &r.Temperature, &r.Humidity, &r.WindSpeed, &r.Pressure, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		newest = append(newest, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

// RiskProfiles returns all area risk profiles. Called once at startup.
func (d *DB) RiskProfiles(ctx context.Context) ([]domain.AreaRiskProfile, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT area_id, name, land_type, risk_multiplier, description
		FROM area_risk_profiles
		ORDER BY area_id`)
	if err != nil {
		return nil, fmt.Errorf("query risk profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.AreaRiskProfile
	for rows.Next() {
		var p domain.AreaRiskProfile
		if err := rows.Scan(&p.AreaID, &p.Name, &p.LandType, &p.RiskMultiplier, &p.Description); err != nil {
			return nil, fmt.Errorf("scan risk profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpsertProfile inserts or replaces one area risk profile, keyed by name.
func (d *DB) UpsertProfile(ctx context.Context, p domain.AreaRiskProfile) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO area_risk_profiles (name, land_type, risk_multiplier, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			land_type = excluded.land_type,
			risk_multiplier = excluded.risk_multiplier,
			description = excluded.description`,
		p.Name, p.LandType, p.RiskMultiplier, p.Description)
	if err != nil {
		return fmt.Errorf("upsert risk profile: %w", err)
	}
	return nil
}

// AddResident inserts one resident record with a free-text address.
func (d *DB) AddResident(ctx context.Context, name, phone, address string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO residents (name, phone, address) VALUES (?, ?, ?)`,
		name, phone, address)
	if err != nil {
		return fmt.Errorf("insert resident: %w", err)
	}
	return nil
}

// RecipientsByArea returns residents whose stored address contains the area
// name. Phones are returned raw; normalization is the dispatcher's concern.
func (d *DB) RecipientsByArea(ctx context.Context, areaName string) ([]domain.Recipient, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT name, phone
		FROM residents
		WHERE phone != '' AND address LIKE '%' || ? || '%'`, areaName)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var r domain.Recipient
		if err := rows.Scan(&r.Name, &r.Phone); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// InsertForecast appends one forecast row and backfills its ID.
func (d *DB) InsertForecast(ctx context.Context, fc *domain.ForecastResult) error {
	res, err := d.sql.ExecContext(ctx, `
		INSERT INTO forecasts (amount_mm, duration_min, rate_mm_per_hour, intensity, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fc.AmountMM, fc.DurationMin, fc.RatePerHour, string(fc.Intensity), fc.Degraded, fc.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	fc.ID, _ = res.LastInsertId()
	return nil
}

// InsertWarning appends one issued warning row and backfills its ID.
func (d *DB) InsertWarning(ctx context.Context, w *domain.FloodWarning) error {
	res, err := d.sql.ExecContext(ctx, `
		INSERT INTO warnings (area_id, area_name, land_type, risk_level, message, rain_rate, duration_min, intensity, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.AreaID, w.AreaName, w.LandType, string(w.Level), w.Message,
		w.RatePerHour, w.DurationMin, string(w.Intensity), w.IssuedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}
	w.ID, _ = res.LastInsertId()
	return nil
}

// DeleteWarningsBefore removes warnings issued before the cutoff, returning
// the number deleted.
func (d *DB) DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx,
		`DELETE FROM warnings WHERE issued_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired warnings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// HasWarningForArea reports whether any persisted (i.e. not yet expired)
// warning exists for the area.
func (d *DB) HasWarningForArea(ctx context.Context, areaID int64) (bool, error) {
	var one int
	err := d.sql.QueryRowContext(ctx,
		`SELECT 1 FROM warnings WHERE area_id = ? LIMIT 1`, areaID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check warning for area %d: %w", areaID, err)
	}
	return true, nil
}

// ActiveWarnings returns persisted warnings ranked High→Moderate→Low, newest
// first within a level.
func (d *DB) ActiveWarnings(ctx context.Context) ([]domain.FloodWarning, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, area_id, area_name, land_type, risk_level, message, rain_rate, duration_min, intensity, issued_at
		FROM warnings
		ORDER BY CASE risk_level WHEN 'High' THEN 3 WHEN 'Moderate' THEN 2 ELSE 1 END DESC, issued_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query active warnings: %w", err)
	}
	defer rows.Close()

	var warnings []domain.FloodWarning
	for rows.Next() {
		var w domain.FloodWarning
		var level, intensity string
		if err := rows.Scan(&w.ID, &w.AreaID, &w.AreaName, &w.LandType, &level, &w.Message,
			&w.RatePerHour, &w.DurationMin, &intensity, &w.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		w.Level = domain.RiskLevel(level)
		w.Intensity = domain.Intensity(intensity)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// LatestForecast returns the newest forecast row, or nil when none exists.
func (d *DB) LatestForecast(ctx context.Context) (*domain.ForecastResult, error) {
	var fc domain.ForecastResult
	var intensity string
	err := d.sql.QueryRowContext(ctx, `
		SELECT id, amount_mm, duration_min, rate_mm_per_hour, intensity, degraded, created_at
		FROM forecasts
		ORDER BY created_at DESC, id DESC
		LIMIT 1`).Scan(&fc.ID, &fc.AmountMM, &fc.DurationMin, &fc.RatePerHour, &intensity, &fc.Degraded, &fc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest forecast: %w", err)
	}
	fc.Intensity = domain.Intensity(intensity)
	return &fc, nil
}

// LatestReading returns the newest sensor reading for a location, or nil
// when none exists.
func (d *DB) LatestReading(ctx context.Context, locationID int64) (*domain.Reading, error) {
	readings, err := d.RecentReadings(ctx, locationID, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}
