// Package profile owns the behavior profile registry: the mapping from an
// object's (type, category) to the rule-set that governs its validation.
package profile

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/planarx/bimhealth/internal/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Store is the persistence surface the registry needs.
type Store interface {
	SaveProfile(ctx context.Context, p domain.BehaviorProfile) error
	ListProfiles(ctx context.Context) ([]domain.BehaviorProfile, error)
}

// Registry holds behavior profiles keyed by profile id. Lookups take read
// locks only, so concurrent validations never contend with each other;
// profiles change far less often than validations run.
type Registry struct {
	mu       sync.RWMutex
	store    Store
	logger   *slog.Logger
	profiles map[string]domain.BehaviorProfile
}

// NewRegistry loads profiles from the store, seeding the built-in defaults
// when the store holds none.
func NewRegistry(ctx context.Context, store Store, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		store:    store,
		logger:   logger,
		profiles: make(map[string]domain.BehaviorProfile),
	}

	loaded, err := store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		r.profiles[p.ProfileID] = p
	}

	if len(r.profiles) == 0 {
		if err := r.seedDefaults(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info("behavior profiles loaded", "count", len(r.profiles))
	return r, nil
}

// seedDefaults parses the embedded defaults and persists each profile.
func (r *Registry) seedDefaults(ctx context.Context) error {
	var defaults struct {
		Profiles []domain.BehaviorProfile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		return fmt.Errorf("parse default profiles: %w", err)
	}

	for _, p := range defaults.Profiles {
		r.profiles[p.ProfileID] = p
		if err := r.store.SaveProfile(ctx, p); err != nil {
			return err
		}
	}

	r.logger.Info("seeded default behavior profiles", "count", len(defaults.Profiles))
	return nil
}

// Lookup resolves a profile for an object's type and category. It first
// tries the exact key "{type}_{category}" (bare type when category is
// empty); on a miss it scans all profiles for the first whose object type
// or category matches, returning it as a best-effort fallback. The second
// return reports whether the match was exact. The scan is O(n) in profile
// count, which stays in the tens.
func (r *Registry) Lookup(objectType, category string) (*domain.BehaviorProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.profiles[domain.ProfileKey(objectType, category)]; ok {
		return &p, true
	}

	// Scan in sorted key order so the fallback choice is deterministic.
	for _, id := range r.sortedIDs() {
		p := r.profiles[id]
		if p.ObjectType == objectType || (category != "" && p.Category == category) {
			return &p, false
		}
	}

	return nil, false
}

// Add upserts a profile by id and persists it. The operation is idempotent.
func (r *Registry) Add(ctx context.Context, p domain.BehaviorProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SaveProfile(ctx, p); err != nil {
		return err
	}
	r.profiles[p.ProfileID] = p

	r.logger.Info("behavior profile added", "profile_id", p.ProfileID)
	return nil
}

// All returns every profile, sorted by id.
func (r *Registry) All() []domain.BehaviorProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.BehaviorProfile, 0, len(r.profiles))
	for _, id := range r.sortedIDs() {
		all = append(all, r.profiles[id])
	}
	return all
}

// IDs returns the registered profile ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedIDs()
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// sortedIDs must be called with at least a read lock held.
func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
