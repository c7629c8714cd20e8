/*
Copyright © 2019 the COSFlux authors.
This file is part of COSFlux.

COSFlux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

COSFlux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with COSFlux.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package store keeps model time series at NOAA sites in a PostgreSQL
// database so they can be compared across scenarios and served over HTTP.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cosflux/cosflux/internal/monitor"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// Point is one value of a site time series.
type Point struct {
	Site     string  `db:"site_code" json:"site"`
	Scenario string  `db:"scenario" json:"scenario"`
	Variable string  `db:"variable" json:"variable"`
	Step     int     `db:"step" json:"step"`
	Value    float64 `db:"value" json:"value"`
}

// MarshalJSON writes a non-finite Value, which a depleted COS-32 pool
// produces in δ34S, as null.
func (p Point) MarshalJSON() ([]byte, error) {
	type point Point
	v := struct {
		point
		Value *float64 `json:"value"`
	}{point: point(p)}
	if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
		v.Value = &p.Value
	}
	return json.Marshal(v)
}

// UnmarshalJSON reads a null Value as NaN.
func (p *Point) UnmarshalJSON(b []byte) error {
	type point Point
	var v struct {
		point
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Point(v.point)
	p.Value = math.NaN()
	if v.Value != nil {
		p.Value = *v.Value
	}
	return nil
}

// SeriesPoints converts a time series into Points.
func SeriesPoints(site, scenario, variable string, values []float64) []Point {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{Site: site, Scenario: scenario, Variable: variable, Step: i, Value: v}
	}
	return pts
}

// Repository stores and retrieves site time series.
type Repository interface {
	Migrate(ctx context.Context) error
	InsertSeries(ctx context.Context, points []Point) error
	ListSites(ctx context.Context, scenario string) ([]string, error)
	Series(ctx context.Context, site, scenario, variable string) ([]Point, error)
	Close() error
}

// DB is a Repository backed by PostgreSQL.
type DB struct {
	db      *sqlx.DB
	log     logrus.FieldLogger
	metrics *monitor.Collector
}

// Open connects to the database at dsn and checks the connection.
// metrics may be nil.
func Open(ctx context.Context, dsn string, log logrus.FieldLogger, metrics *monitor.Collector) (*DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connecting to database: %w", err)
	}
	log.Info("connected to series database")
	return &DB{db: db, log: log, metrics: metrics}, nil
}

// Close closes the database connection.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) fail(op string, err error) error {
	if d.metrics != nil {
		d.metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	}
	d.log.WithFields(logrus.Fields{"operation": op, "error": err}).Error("database operation failed")
	return fmt.Errorf("store: %s: %w", op, err)
}

const schema = `
CREATE TABLE IF NOT EXISTS site_series (
	site_code  TEXT NOT NULL,
	scenario   TEXT NOT NULL,
	variable   TEXT NOT NULL,
	step       INTEGER NOT NULL,
	value      DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (site_code, scenario, variable, step)
)`

// Migrate creates the series table if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return d.fail("migrate", err)
	}
	return nil
}

// InsertSeries writes points in a single transaction, replacing any
// existing values for the same site, scenario, variable and step.
func (d *DB) InsertSeries(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return d.fail("insert", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO site_series (site_code, scenario, variable, step, value)
		VALUES (:site_code, :scenario, :variable, :step, :value)
		ON CONFLICT (site_code, scenario, variable, step) DO UPDATE SET
			value = EXCLUDED.value,
			created_at = now()`)
	if err != nil {
		return d.fail("insert", err)
	}
	defer stmt.Close()
	for _, p := range points {
		if _, err = stmt.ExecContext(ctx, p); err != nil {
			return d.fail("insert", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return d.fail("insert", err)
	}
	if d.metrics != nil {
		d.metrics.SeriesStoredTotal.Add(float64(len(points)))
	}
	d.log.WithFields(logrus.Fields{"points": len(points)}).Debug("stored site series")
	return nil
}

// ListSites returns the codes of the sites with series for scenario.
func (d *DB) ListSites(ctx context.Context, scenario string) ([]string, error) {
	var sites []string
	err := d.db.SelectContext(ctx, &sites,
		`SELECT DISTINCT site_code FROM site_series WHERE scenario = $1 ORDER BY site_code`, scenario)
	if err != nil {
		return nil, d.fail("list sites", err)
	}
	return sites, nil
}

// Series returns the time series of variable at site, ordered by step.
func (d *DB) Series(ctx context.Context, site, scenario, variable string) ([]Point, error) {
	var pts []Point
	err := d.db.SelectContext(ctx, &pts, `
		SELECT site_code, scenario, variable, step, value
		FROM site_series
		WHERE site_code = $1 AND scenario = $2 AND variable = $3
		ORDER BY step`, site, scenario, variable)
	if err != nil {
		return nil, d.fail("series", err)
	}
	return pts, nil
}
