// Package identity maps face embeddings to known identity names by cosine similarity.
package identity

import (
	"context"
	"slices"
	"sync"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
)

const (
	// Unknown is returned when no reference is similar enough.
	Unknown = "unknown"

	// DefaultThreshold is the minimum cosine similarity for a match.
	DefaultThreshold = 0.6
)

// Reference is one named embedding.
type Reference struct {
	Name      string
	Embedding []float32
}

// Repository persists the full ordered reference set.
type Repository interface {
	LoadAll(ctx context.Context) ([]Reference, error)
	SaveAll(ctx context.Context, refs []Reference) error
}

type entry struct {
	embedding []float32
	norm      float64
}

// Store holds reference embeddings in insertion order. Lookups run concurrently,
// mutations are serialized.
type Store struct {
	mu        sync.RWMutex
	names     []string
	refs      map[string]entry
	threshold float64
	metrics   *metrics.IdentityMetrics
	log       logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithThreshold sets the match threshold.
func WithThreshold(threshold float64) Option {
	return func(s *Store) { s.threshold = threshold }
}

// WithMetrics records lookups to m.
func WithMetrics(m *metrics.IdentityMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		refs:      make(map[string]entry),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	return s
}

// Identify returns the name of the most similar reference, or Unknown when the best
// similarity is below the threshold or the store is empty. References are compared in
// insertion order and only a strictly better score replaces the current best, so the
// earliest-inserted reference wins ties. References whose dimension differs from the
// query, and zero vectors, never match.
func (s *Store) Identify(embedding []float32) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.names) == 0 {
		s.metrics.ObserveLookup(metrics.OutcomeEmpty, 0)
		return Unknown
	}

	queryNorm := norm(embedding)
	bestScore := -1.0
	bestName := ""

	for _, name := range s.names {
		ref := s.refs[name]
		score, ok := cosineWithNorms(embedding, queryNorm, ref.embedding, ref.norm)
		if !ok {
			s.log.Debug("skipping incomparable reference",
				logger.String("identity", name),
				logger.Int("query_dim", len(embedding)),
				logger.Int("reference_dim", len(ref.embedding)))
			continue
		}
		if score > bestScore {
			bestScore = score
			bestName = name
		}
	}

	if bestName != "" && bestScore >= s.threshold {
		s.metrics.ObserveLookup(metrics.OutcomeMatch, bestScore)
		return bestName
	}

	s.metrics.ObserveLookup(metrics.OutcomeUnknown, bestScore)
	return Unknown
}

// Add inserts or replaces the embedding for name. A replaced name keeps its position.
// The embedding is copied.
func (s *Store) Add(name string, embedding []float32) {
	e := entry{embedding: slices.Clone(embedding), norm: norm(embedding)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refs[name]; !exists {
		s.names = append(s.names, name)
	}
	s.refs[name] = e
	s.metrics.SetReferences(len(s.names))
}

// Remove deletes name. Removing an absent name is a no-op; the return reports whether
// anything was removed.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refs[name]; !exists {
		return false
	}
	delete(s.refs, name)
	s.names = slices.DeleteFunc(s.names, func(n string) bool { return n == name })
	s.metrics.SetReferences(len(s.names))
	return true
}

// Names returns identity names in insertion order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names)
}

// Embedding returns a copy of the embedding stored for name.
func (s *Store) Embedding(name string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.refs[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.embedding), true
}

// Len returns the number of references.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

func (s *Store) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

func (s *Store) SetThreshold(threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
}

// Snapshot returns all references in insertion order.
func (s *Store) Snapshot() []Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]Reference, 0, len(s.names))
	for _, name := range s.names {
		refs = append(refs, Reference{Name: name, Embedding: slices.Clone(s.refs[name].embedding)})
	}
	return refs
}

// LoadFrom replaces the store contents with the references held by repo.
// On error the store is left unchanged.
func (s *Store) LoadFrom(ctx context.Context, repo Repository) error {
	refs, err := repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(refs))
	entries := make(map[string]entry, len(refs))
	for _, ref := range refs {
		if ref.Name == "" {
			return errors.Newf("reference with empty name").
				Component("identity").
				Category(errors.CategoryValidation).
				Build()
		}
		if _, dup := entries[ref.Name]; !dup {
			names = append(names, ref.Name)
		}
		entries[ref.Name] = entry{embedding: ref.Embedding, norm: norm(ref.Embedding)}
	}

	s.mu.Lock()
	s.names = names
	s.refs = entries
	s.metrics.SetReferences(len(names))
	s.mu.Unlock()

	s.log.Info("loaded identities", logger.Int("count", len(names)))
	return nil
}

// SaveTo writes the full reference set to repo.
func (s *Store) SaveTo(ctx context.Context, repo Repository) error {
	refs := s.Snapshot()
	if err := repo.SaveAll(ctx, refs); err != nil {
		return err
	}
	s.log.Info("saved identities", logger.Int("count", len(refs)))
	return nil
}

// Load replaces the store contents with the JSON mapping at path.
// A missing or malformed file returns an error and leaves the store unchanged.
func (s *Store) Load(path string) error {
	return s.LoadFrom(context.Background(), NewJSONFile(path))
}

// Save writes the store to path as a JSON mapping, atomically.
func (s *Store) Save(path string) error {
	return s.SaveTo(context.Background(), NewJSONFile(path))
}
