// Package memory is the in-process provider directory, loaded from a YAML seed.
package memory

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"drivematch/internal/discovery/models"
	id "drivematch/pkg/domain"
	"drivematch/pkg/platform/sentinel"
)

//go:embed seed/jundiai.yaml
var defaultSeed []byte

// Directory holds listings in insertion order.
type Directory struct {
	mu         sync.RWMutex
	candidates []models.Candidate
	index      map[id.ProviderID]int
}

func New(candidates ...models.Candidate) *Directory {
	d := &Directory{index: make(map[id.ProviderID]int, len(candidates))}
	for _, c := range candidates {
		d.put(c)
	}
	return d
}

// Default returns the directory built from the embedded seed.
func Default() (*Directory, error) {
	candidates, err := LoadYAML(bytes.NewReader(defaultSeed))
	if err != nil {
		return nil, fmt.Errorf("load embedded directory seed: %w", err)
	}
	return New(candidates...), nil
}

// FromFile loads a seed file, or the embedded seed when path is empty.
func FromFile(path string) (*Directory, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open directory seed: %w", err)
	}
	defer f.Close()
	candidates, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("load directory seed %s: %w", path, err)
	}
	return New(candidates...), nil
}

type seedFile struct {
	Providers []seedProvider `yaml:"providers"`
}

type seedProvider struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Gender       string          `yaml:"gender"`
	Categories   []string        `yaml:"categories"`
	Transmission string          `yaml:"transmission"`
	HourlyPrice  float64         `yaml:"hourly_price"`
	VehicleModel string          `yaml:"vehicle_model"`
	VehicleYear  int             `yaml:"vehicle_year"`
	Rating       float64         `yaml:"rating"`
	ReviewCount  int             `yaml:"review_count"`
	Position     models.Position `yaml:"position"`
	AvailableNow bool            `yaml:"available_now"`
}

// LoadYAML parses a seed document. Every listing is validated; the first bad
// one fails the whole load.
func LoadYAML(r io.Reader) ([]models.Candidate, error) {
	var doc seedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return []models.Candidate{}, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	out := make([]models.Candidate, 0, len(doc.Providers))
	seen := make(map[id.ProviderID]struct{}, len(doc.Providers))
	for i, p := range doc.Providers {
		c, err := p.toCandidate()
		if err != nil {
			return nil, fmt.Errorf("provider %d (%s): %w", i, p.Name, err)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("provider %d (%s): duplicate id %s", i, p.Name, c.ID)
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

func (p seedProvider) toCandidate() (models.Candidate, error) {
	providerID, err := id.ParseProviderID(p.ID)
	if err != nil {
		return models.Candidate{}, err
	}
	categories, err := models.ParseCategories(p.Categories)
	if err != nil {
		return models.Candidate{}, err
	}
	transmission, err := id.ParseTransmission(p.Transmission)
	if err != nil {
		return models.Candidate{}, err
	}
	return models.Candidate{
		ID:           providerID,
		Name:         p.Name,
		Gender:       p.Gender,
		Categories:   categories,
		Transmission: transmission,
		HourlyPrice:  p.HourlyPrice,
		VehicleModel: p.VehicleModel,
		VehicleYear:  p.VehicleYear,
		Rating:       p.Rating,
		ReviewCount:  p.ReviewCount,
		Position:     p.Position,
		AvailableNow: p.AvailableNow,
	}, nil
}

func (d *Directory) put(c models.Candidate) {
	if i, ok := d.index[c.ID]; ok {
		d.candidates[i] = c
		return
	}
	d.index[c.ID] = len(d.candidates)
	d.candidates = append(d.candidates, c)
}

// List returns a copy of every listing in insertion order.
func (d *Directory) List(_ context.Context) ([]models.Candidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Candidate, len(d.candidates))
	for i, c := range d.candidates {
		c.Categories = slices.Clone(c.Categories)
		out[i] = c
	}
	return out, nil
}

func (d *Directory) Get(_ context.Context, providerID id.ProviderID) (*models.Candidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[providerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := d.candidates[i]
	c.Categories = slices.Clone(c.Categories)
	return &c, nil
}

// Len reports the number of listings.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.candidates)
}
