// Package handler serves the delivery and catalog JSON API.
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"homefoods-delivery/internal/delivery"
	"homefoods-delivery/internal/directory"
	"homefoods-delivery/internal/geocode"
)

// Server holds the collaborators the endpoints share.
type Server struct {
	store    directory.Store
	geo      geocode.Client
	resolver *delivery.Resolver
	tiers    []delivery.DistanceTier
	origin   delivery.Point
	log      *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithResolver replaces the default resolver.
func WithResolver(r *delivery.Resolver) Option {
	return func(s *Server) { s.resolver = r }
}

// WithDistancePricing sets the custom city tiers and kitchen origin.
func WithDistancePricing(tiers []delivery.DistanceTier, origin delivery.Point) Option {
	return func(s *Server) {
		s.tiers = tiers
		s.origin = origin
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithTimeout bounds the upstream calls of a single request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithClock overrides time.Now for discount pricing.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer wires store and geocoder into a Server.
func NewServer(store directory.Store, geo geocode.Client, opts ...Option) *Server {
	s := &Server{
		store:    store,
		geo:      geo,
		resolver: delivery.NewResolver(),
		tiers:    delivery.DefaultDistanceTiers,
		origin:   delivery.DefaultOrigin,
		log:      zap.NewNop(),
		timeout:  5 * time.Second,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) snapshot(ctx context.Context) (directory.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return directory.Load(ctx, s.store)
}
