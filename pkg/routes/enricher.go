package routes

import (
	"context"
	"log/slog"
)

// Lookuper resolves a single callsign over the network.
type Lookuper interface {
	LookupCallsign(ctx context.Context, callsign string) (Route, error)
}

// Enricher memoizes callsign lookups for the lifetime of the process.
//
// Entries are never evicted and never expire, including failed lookups:
// a callsign whose lookup failed once stays Unknown until restart.
// Not safe for concurrent use.
type Enricher struct {
	lookup Lookuper
	cache  map[string]Route
	logger *slog.Logger
}

// NewEnricher creates an Enricher on top of a Lookuper.
func NewEnricher(lookup Lookuper, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		lookup: lookup,
		cache:  make(map[string]Route),
		logger: logger,
	}
}

// Resolve returns the route for callsign. The callsign is used as the cache
// key verbatim; callers pass the trimmed callsign. The empty callsign maps to
// UnknownRoute without a network call.
func (e *Enricher) Resolve(ctx context.Context, callsign string) Route {
	if route, ok := e.cache[callsign]; ok {
		e.logger.Debug("Route cache hit", slog.String("callsign", callsign))
		return route
	}

	if callsign == "" {
		e.cache[callsign] = UnknownRoute
		return UnknownRoute
	}

	route, err := e.lookup.LookupCallsign(ctx, callsign)
	if err != nil {
		e.logger.Error("Route info fetch failed",
			slog.String("callsign", callsign), slog.Any("error", err))
		route = UnknownRoute
	}

	e.cache[callsign] = route
	return route
}

// Len returns the number of cached callsigns.
func (e *Enricher) Len() int {
	return len(e.cache)
}
