package db

import (
	"context"
	"fmt"
	"time"

	"github.com/unklstewy/flightboard/pkg/panel"
)

// Sighting is one frame shown on the panel.
type Sighting struct {
	ID          int64     `json:"id"`
	Area        string    `json:"area"`
	Callsign    string    `json:"callsign"`
	Airline     string    `json:"airline"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	AltitudeFt  int       `json:"altitude_ft"`
	SpeedKnots  int       `json:"speed_knots"`
	DistanceKm  float64   `json:"distance_km"`
	ShownAt     time.Time `json:"shown_at"`
}

// SightingFromFrame copies the printed fields of a frame.
func SightingFromFrame(f panel.Frame, shownAt time.Time) Sighting {
	return Sighting{
		Area:        f.Area,
		Callsign:    f.Callsign,
		Airline:     f.Airline,
		Origin:      f.Origin,
		Destination: f.Destination,
		AltitudeFt:  f.AltitudeFt,
		SpeedKnots:  f.SpeedKnots,
		DistanceKm:  f.DistanceKm,
		ShownAt:     shownAt.UTC(),
	}
}

// SightingRepository handles database operations for the sightings journal.
type SightingRepository struct {
	db *DB
}

// NewSightingRepository creates a new sighting repository.
func NewSightingRepository(db *DB) *SightingRepository {
	return &SightingRepository{db: db}
}

// Record inserts a sighting.
func (r *SightingRepository) Record(ctx context.Context, s Sighting) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO displayed_sightings (
			area, callsign, airline, origin, destination,
			altitude_ft, speed_knots, distance_km, shown_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.Area, s.Callsign, s.Airline, s.Origin, s.Destination,
		s.AltitudeFt, s.SpeedKnots, s.DistanceKm, s.ShownAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sighting %s: %w", s.Callsign, err)
	}
	return nil
}

// Recent returns up to limit sightings, newest first.
func (r *SightingRepository) Recent(ctx context.Context, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, area, callsign, airline, origin, destination,
		        altitude_ft, speed_knots, distance_km, shown_at
		 FROM displayed_sightings
		 ORDER BY shown_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []Sighting
	for rows.Next() {
		var s Sighting
		if err := rows.Scan(&s.ID, &s.Area, &s.Callsign, &s.Airline, &s.Origin,
			&s.Destination, &s.AltitudeFt, &s.SpeedKnots, &s.DistanceKm, &s.ShownAt); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sightings = append(sightings, s)
	}

	return sightings, rows.Err()
}
