// Package directory is the station registry: statically configured
// stations merged with stations discovered through the TuneIn directory.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/grafana/dskit/services"

	"github.com/krperry/mediaAI/pkg/tunein"
)

var module = "directory"

// Station is an entry in the registry.
type Station struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Bitrate int    `json:"bitrate,omitempty"`
	Genre   string `json:"genre,omitempty"`
}

// searcher is the slice of the TuneIn client the directory uses.
type searcher interface {
	Search(ctx context.Context, query string) ([]tunein.Station, error)
	Resolve(ctx context.Context, stationID string) (string, error)
}

// Directory serves station lookup and search. Stations found through
// TuneIn are cached so a later lookup by ID resolves without another
// directory round trip.
type Directory struct {
	services.Service

	cfg      *Config
	logger   *slog.Logger
	tunein   searcher
	onSearch func(category string)

	mu       sync.RWMutex
	stations map[string]Station
}

// New creates the directory service.
func New(cfg Config, logger slog.Logger) (*Directory, error) {
	d := &Directory{
		cfg:      &cfg,
		logger:   logger.With("module", module),
		stations: make(map[string]Station),
	}

	if cfg.TuneInEnabled {
		opts := []tunein.Option{}
		if cfg.TuneInBaseURL != "" {
			opts = append(opts, tunein.WithBaseURL(cfg.TuneInBaseURL))
		}
		d.tunein = tunein.NewClient(opts...)
	}

	d.Service = services.NewIdleService(d.starting, nil)
	return d, nil
}

// OnSearch installs a callback invoked with the category of every
// successful search. The player uses it to remember the last browsed
// category across restarts.
func (d *Directory) OnSearch(fn func(category string)) {
	d.onSearch = fn
}

func (d *Directory) starting(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, st := range d.cfg.Stations {
		if st.ID == "" || st.URL == "" {
			return fmt.Errorf("station %q: id and url are required", st.Name)
		}
		d.stations[st.ID] = Station{ID: st.ID, Name: st.Name, URL: st.URL}
	}

	d.logger.Info("loaded stations", "count", len(d.stations))
	return nil
}

// List returns all known stations sorted by name.
func (d *Directory) List() []Station {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Station, 0, len(d.stations))
	for _, st := range d.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup resolves a station ID to a playable station. Unknown IDs fall
// through to TuneIn resolution when enabled.
func (d *Directory) Lookup(ctx context.Context, id string) (Station, error) {
	d.mu.RLock()
	st, ok := d.stations[id]
	d.mu.RUnlock()
	if ok {
		return st, nil
	}

	if d.tunein == nil {
		return Station{}, fmt.Errorf("unknown station %q", id)
	}

	url, err := d.tunein.Resolve(ctx, id)
	if err != nil {
		return Station{}, fmt.Errorf("unknown station %q: %w", id, err)
	}

	st = Station{ID: id, Name: id, URL: url}
	d.cache(st)
	return st, nil
}

// Search queries TuneIn for stations matching the category and merges the
// results into the registry.
func (d *Directory) Search(ctx context.Context, category string) ([]Station, error) {
	if d.tunein == nil {
		return nil, fmt.Errorf("tunein directory is disabled")
	}

	found, err := d.tunein.Search(ctx, category)
	if err != nil {
		return nil, err
	}

	out := make([]Station, 0, len(found))
	for _, ts := range found {
		if ts.ID == "" {
			continue
		}
		st := Station{
			ID:      ts.ID,
			Name:    ts.Name,
			URL:     ts.URL,
			Bitrate: ts.Bitrate,
			Genre:   ts.GenreID,
		}
		d.cache(st)
		out = append(out, st)
	}

	d.logger.Info("directory search", "category", category, "results", len(out))
	if d.onSearch != nil {
		d.onSearch(category)
	}
	return out, nil
}

func (d *Directory) cache(st Station) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.stations[st.ID]; !exists {
		d.stations[st.ID] = st
	}
}
