package directory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
)

// document is the on-disk YAML layout.
type document struct {
	FreeDelivery *delivery.FreeDeliverySettings `yaml:"free_delivery,omitempty"`
	Locations    []delivery.Location            `yaml:"locations"`
	Products     []catalog.Product              `yaml:"products,omitempty"`
}

// FileStore keeps the directory in a YAML file. A missing file, or one
// without a locations key, serves the default locations; the first write
// stores them. An explicit empty list stays empty.
type FileStore struct {
	path     string
	log      *zap.Logger
	debounce time.Duration

	mu       sync.RWMutex
	doc      document
	onReload []func()
}

// OpenFile loads path.
func OpenFile(path string, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &FileStore{path: path, log: log, debounce: 250 * time.Millisecond}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rereads the file.
func (s *FileStore) Reload() error {
	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	hooks := append([]func(){}, s.onReload...)
	s.mu.Unlock()
	for _, h := range hooks {
		h()
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (s *FileStore) OnReload(fn func()) {
	s.mu.Lock()
	s.onReload = append(s.onReload, fn)
	s.mu.Unlock()
}

func readDocument(path string) (document, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("read %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func (s *FileStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Locations:    s.locationsLocked(),
		FreeDelivery: s.freeDeliveryLocked(),
		Products:     append([]catalog.Product(nil), s.doc.Products...),
	}, nil
}

func (s *FileStore) Locations(ctx context.Context) ([]delivery.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locationsLocked(), nil
}

func (s *FileStore) FreeDelivery(ctx context.Context) (delivery.FreeDeliverySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freeDeliveryLocked(), nil
}

func (s *FileStore) Products(ctx context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.Product(nil), s.doc.Products...), nil
}

func (s *FileStore) locationsLocked() []delivery.Location {
	if s.doc.Locations == nil {
		return DefaultLocations()
	}
	return slices.Clone(s.doc.Locations)
}

func (s *FileStore) freeDeliveryLocked() delivery.FreeDeliverySettings {
	if s.doc.FreeDelivery == nil {
		return DefaultFreeDelivery
	}
	return *s.doc.FreeDelivery
}

func (s *FileStore) UpsertLocation(ctx context.Context, loc delivery.Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	return s.update(func(doc *document) error {
		key := locationKey(loc.State, loc.Name)
		for i, existing := range doc.Locations {
			if locationKey(existing.State, existing.Name) == key {
				doc.Locations[i] = loc
				return nil
			}
		}
		doc.Locations = append(doc.Locations, loc)
		return nil
	})
}

func (s *FileStore) DeleteLocation(ctx context.Context, state, name string) error {
	return s.update(func(doc *document) error {
		key := locationKey(state, name)
		for i, existing := range doc.Locations {
			if locationKey(existing.State, existing.Name) == key {
				doc.Locations = append(doc.Locations[:i:i], doc.Locations[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("location %s, %s: %w", name, state, ErrNotFound)
	})
}

func (s *FileStore) SetFreeDelivery(ctx context.Context, fd delivery.FreeDeliverySettings) error {
	if err := ValidateSettings(fd); err != nil {
		return err
	}
	return s.update(func(doc *document) error {
		doc.FreeDelivery = &fd
		return nil
	})
}

func (s *FileStore) SetAvailableCities(ctx context.Context, productID string, cities []string) error {
	return s.update(func(doc *document) error {
		for i := range doc.Products {
			if doc.Products[i].ID == productID {
				if len(cities) == 0 {
					cities = nil
				}
				doc.Products[i].AvailableCities = cities
				return nil
			}
		}
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	})
}

// update applies fn to a copy of the document and persists it before
// making it visible. The copy starts from the served locations, so an
// edit applies to what the admin was looking at.
func (s *FileStore) update(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := document{
		FreeDelivery: s.doc.FreeDelivery,
		Locations:    s.locationsLocked(),
		Products:     append([]catalog.Product(nil), s.doc.Products...),
	}
	if err := fn(&next); err != nil {
		return err
	}
	if err := writeDocument(s.path, next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func writeDocument(path string, doc document) error {
	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode directory: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Watch reloads the file whenever it changes on disk until ctx is done.
// Bursts of events are debounced.
func (s *FileStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors and our own writes replace the file.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Info("watching directory file", zap.String("path", s.path))

	target := filepath.Clean(s.path)
	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(s.debounce)
		case <-timer.C:
			if err := s.Reload(); err != nil {
				s.log.Warn("directory reload failed", zap.String("path", s.path), zap.Error(err))
				continue
			}
			s.log.Info("directory reloaded", zap.String("path", s.path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("directory watcher error", zap.Error(err))
		}
	}
}
