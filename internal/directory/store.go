// Package directory persists the delivery locations, free delivery
// settings and product catalog the resolver reads.
package directory

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
)

var (
	ErrNotFound        = errors.New("directory: not found")
	ErrInvalidLocation = errors.New("directory: invalid location")
	ErrInvalidSettings = errors.New("directory: invalid free delivery settings")
)

// Reader exposes the data the resolver needs.
type Reader interface {
	Locations(ctx context.Context) ([]delivery.Location, error)
	FreeDelivery(ctx context.Context) (delivery.FreeDeliverySettings, error)
	Products(ctx context.Context) ([]catalog.Product, error)
}

// Writer is the administrative side.
type Writer interface {
	// UpsertLocation replaces the location with the same normalised
	// (state, name) or adds it.
	UpsertLocation(ctx context.Context, loc delivery.Location) error
	DeleteLocation(ctx context.Context, state, name string) error
	SetFreeDelivery(ctx context.Context, s delivery.FreeDeliverySettings) error
	// SetAvailableCities restricts a product to cities. An empty list
	// makes it available everywhere.
	SetAvailableCities(ctx context.Context, productID string, cities []string) error
}

// Store is a complete backend.
type Store interface {
	Reader
	Writer
}

// Snapshot is a consistent view of a directory.
type Snapshot struct {
	Locations    []delivery.Location
	FreeDelivery delivery.FreeDeliverySettings
	Products     []catalog.Product
}

// Snapshotter is implemented by stores that can produce a Snapshot in one go.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Load reads a Snapshot from r, fetching the three parts concurrently
// unless r can produce one itself.
func Load(ctx context.Context, r Reader) (Snapshot, error) {
	if s, ok := r.(Snapshotter); ok {
		return s.Snapshot(ctx)
	}
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		locs, err := r.Locations(gctx)
		if err != nil {
			return fmt.Errorf("load locations: %w", err)
		}
		snap.Locations = locs
		return nil
	})
	g.Go(func() error {
		s, err := r.FreeDelivery(gctx)
		if err != nil {
			return fmt.Errorf("load free delivery settings: %w", err)
		}
		snap.FreeDelivery = s
		return nil
	})
	g.Go(func() error {
		ps, err := r.Products(gctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		snap.Products = ps
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// States lists distinct location states in first-seen order.
func (s Snapshot) States() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, loc := range s.Locations {
		k := delivery.Normalize(loc.State)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, loc.State)
	}
	return out
}

// ValidateLocation checks the fields an admin supplies.
func ValidateLocation(loc delivery.Location) error {
	switch {
	case delivery.Normalize(loc.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidLocation)
	case delivery.Normalize(loc.State) == "":
		return fmt.Errorf("%w: state is required", ErrInvalidLocation)
	case loc.Charge < 0:
		return fmt.Errorf("%w: charge must be non-negative", ErrInvalidLocation)
	case loc.FreeDeliveryThreshold != nil && *loc.FreeDeliveryThreshold < 0:
		return fmt.Errorf("%w: free delivery threshold must be non-negative", ErrInvalidLocation)
	}
	return nil
}

// ValidateSettings rejects negative thresholds.
func ValidateSettings(s delivery.FreeDeliverySettings) error {
	if s.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be non-negative", ErrInvalidSettings)
	}
	return nil
}

func locationKey(state, name string) string {
	return delivery.Normalize(state) + "\x00" + delivery.Normalize(name)
}
