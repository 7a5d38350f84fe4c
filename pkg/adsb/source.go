package adsb

import (
	"context"
	"log/slog"
)

// Source is the position source used by the display loop. It never returns
// an error: transport failures, bad statuses and malformed payloads are
// logged and reported as "no aircraft". No retry is attempted.
type Source struct {
	ds     DataSource
	logger *slog.Logger
}

// NewSource wraps a DataSource. A nil logger uses slog.Default().
func NewSource(ds DataSource, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{ds: ds, logger: logger}
}

// Fetch returns up to MaxAircraft aircraft near the given point, or nil.
func (s *Source) Fetch(ctx context.Context, lat, lon, radiusKm float64) []Aircraft {
	s.logger.Info("Fetching aircraft data",
		slog.Float64("lat", lat), slog.Float64("lon", lon), slog.Float64("radius_km", radiusKm))

	aircraft, err := s.ds.GetAircraft(ctx, lat, lon, radiusKm)
	if err != nil {
		attrs := []any{slog.Any("error", err)}
		if rle, ok := IsRateLimitError(err); ok && rle.Headers.Remaining >= 0 {
			attrs = append(attrs,
				slog.Int("remaining", rle.Headers.Remaining),
				slog.Int("limit", rle.Headers.Limit),
				slog.Time("reset", rle.Headers.Reset))
		}
		s.logger.Error("Aircraft fetch failed", attrs...)
		return nil
	}

	if len(aircraft) > MaxAircraft {
		aircraft = aircraft[:MaxAircraft]
	}
	return aircraft
}
