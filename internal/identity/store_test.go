package identity

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
)

func newTestStore(opts ...Option) *Store {
	return NewStore(append([]Option{WithLogger(logger.NewSlogLogger(nil, logger.LogLevelInfo, nil))}, opts...)...)
}

func TestIdentifyEmptyStore(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	assert.Equal(t, Unknown, s.Identify([]float32{1, 0}))
	assert.Equal(t, Unknown, s.Identify(nil))
}

func TestIdentifyBestMatch(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Add("A", []float32{1, 0})
	s.Add("B", []float32{0, 1})

	assert.Equal(t, "A", s.Identify([]float32{0.9, 0.1}))
	assert.Equal(t, "B", s.Identify([]float32{0.1, 0.9}))
	// cos 45° ≈ 0.707 clears the threshold, the tie goes to A
	assert.Equal(t, "A", s.Identify([]float32{1, 1}))
	assert.Equal(t, Unknown, s.Identify([]float32{-1, -1}))
}

func TestIdentifyTieEarliestInsertedWins(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Add("first", []float32{1, 0, 0})
	s.Add("second", []float32{2, 0, 0})

	assert.Equal(t, "first", s.Identify([]float32{3, 0, 0}))

	// upsert keeps the original position
	s.Add("first", []float32{5, 0, 0})
	assert.Equal(t, "first", s.Identify([]float32{3, 0, 0}))
	assert.Equal(t, []string{"first", "second"}, s.Names())

	// removing and re-adding moves the name to the end
	s.Remove("first")
	s.Add("first", []float32{1, 0, 0})
	assert.Equal(t, "second", s.Identify([]float32{3, 0, 0}))
}

func TestIdentifyThresholdBoundary(t *testing.T) {
	t.Parallel()

	s := newTestStore(WithThreshold(1))
	s.Add("exact", []float32{2, 0})

	// a parallel vector scores exactly 1, which satisfies >= threshold
	assert.Equal(t, "exact", s.Identify([]float32{3, 0}))

	s.SetThreshold(0.99)
	assert.InDelta(t, 0.99, s.Threshold(), 1e-12)
	assert.Equal(t, Unknown, s.Identify([]float32{1, 1}))
}

func TestIdentifyIncomparableReferences(t *testing.T) {
	t.Parallel()

	s := newTestStore(WithThreshold(-1))
	s.Add("short", []float32{1, 0})
	s.Add("zero", []float32{0, 0, 0})

	assert.NotPanics(t, func() {
		assert.Equal(t, Unknown, s.Identify([]float32{1, 0, 0}))
		assert.Equal(t, Unknown, s.Identify([]float32{0, 0}))
	})
}

func TestIdentifySkipsIncomparableAtLowThreshold(t *testing.T) {
	t.Parallel()

	// if incomparable pairs scored 0, "short" would beat "opposite" (about -0.71)
	s := newTestStore(WithThreshold(-1))
	s.Add("short", []float32{1, 0})
	s.Add("zero", []float32{0, 0, 0})
	s.Add("opposite", []float32{-1, 1, 0})

	assert.Equal(t, "opposite", s.Identify([]float32{1, 0, 0}))
}

func TestAddCopiesEmbedding(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	vec := []float32{1, 0}
	s.Add("A", vec)
	vec[0], vec[1] = 0, 1

	got, ok := s.Embedding("A")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, got)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Add("A", []float32{1})
	assert.False(t, s.Remove("missing"))
	assert.True(t, s.Remove("A"))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, Unknown, s.Identify([]float32{1}))
}

func TestCosineSimilarityProperties(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, 2, 3},
		{-0.5, 0.25, 8},
		{1e-3, 1e-3, 1e-3},
		{100, -200, 300},
	}

	for _, a := range vectors {
		self, ok := CosineSimilarity(a, a)
		require.True(t, ok)
		assert.InDelta(t, 1, self, 1e-6)

		for _, b := range vectors {
			ab, _ := CosineSimilarity(a, b)
			ba, _ := CosineSimilarity(b, a)
			assert.InDelta(t, ab, ba, 1e-9)
			assert.LessOrEqual(t, math.Abs(ab), 1.0)
		}
	}

	_, ok := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.False(t, ok)
	_, ok = CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	assert.False(t, ok)
}

func TestConcurrentIdentifyAndAdd(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Add("A", []float32{1, 0})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				s.Identify([]float32{1, 0})
			}
		}()
		go func() {
			defer wg.Done()
			s.Add("B"+string(rune('a'+i)), []float32{0, 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, s.Len())
	assert.Equal(t, "A", s.Identify([]float32{1, 0}))
}

func TestIdentifyMetrics(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewIdentityMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	s := newTestStore(WithMetrics(m))
	s.Identify([]float32{1})
	s.Add("A", []float32{1, 0})
	s.Identify([]float32{1, 0})
	s.Identify([]float32{0, 1})

	assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues(metrics.OutcomeEmpty)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues(metrics.OutcomeMatch)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues(metrics.OutcomeUnknown)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.References), 0)
}

func TestSaveLoadRoundTripKeepsOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "known_faces.json")

	s := newTestStore()
	s.Add("zoe", []float32{0.1, 0.2})
	s.Add("adam", []float32{0.3, 0.4})
	s.Add("mia", []float32{-1, 0.5})
	require.NoError(t, s.Save(path))

	loaded := newTestStore()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, []string{"zoe", "adam", "mia"}, loaded.Names())

	vec, ok := loaded.Embedding("mia")
	require.True(t, ok)
	assert.Equal(t, []float32{-1, 0.5}, vec)
}

func TestLoadPreservesFileKeyOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "faces.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"B": [1, 0], "A": [1, 0]}`), 0o600))

	s := newTestStore()
	require.NoError(t, s.Load(path))
	assert.Equal(t, []string{"B", "A"}, s.Names())
	assert.Equal(t, "B", s.Identify([]float32{1, 0}))
}

func TestLoadFailureLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	tests := []struct {
		name     string
		path     string
		category errors.ErrorCategory
	}{
		{"missing file", filepath.Join(dir, "absent.json"), errors.CategoryFileIO},
		{"malformed json", write("bad.json", `{"A": [1, 0`), errors.CategoryFileParsing},
		{"non-numeric vector", write("str.json", `{"A": ["x", "y"]}`), errors.CategoryFileParsing},
		{"not an object", write("arr.json", `[[1, 2]]`), errors.CategoryFileParsing},
		{"empty embedding", write("empty.json", `{"A": []}`), errors.CategoryFileParsing},
		{"trailing data", write("trail.json", `{"A": [1]} {}`), errors.CategoryFileParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore()
			s.Add("keep", []float32{1, 0})

			err := s.Load(tt.path)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
			assert.Equal(t, []string{"keep"}, s.Names())
			assert.Equal(t, "keep", s.Identify([]float32{1, 0}))
		})
	}
}

func TestLoadEmptyObject(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "faces.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	s := newTestStore()
	s.Add("old", []float32{1})
	require.NoError(t, s.Load(path))
	assert.Equal(t, 0, s.Len())
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "identities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()

	s := newTestStore()
	s.Add("second", []float32{0, 1})
	s.Add("first", []float32{1, 0})
	require.NoError(t, s.SaveTo(ctx, repo))

	loaded := newTestStore()
	require.NoError(t, loaded.LoadFrom(ctx, repo))
	assert.Equal(t, []string{"second", "first"}, loaded.Names())
	assert.Equal(t, "first", loaded.Identify([]float32{0.9, 0.1}))

	// saving again replaces rather than appends
	s.Remove("second")
	require.NoError(t, s.SaveTo(ctx, repo))
	require.NoError(t, loaded.LoadFrom(ctx, repo))
	assert.Equal(t, []string{"first"}, loaded.Names())
}

func TestSQLiteRepositoryErrorsCarryTiming(t *testing.T) {
	t.Parallel()

	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "identities.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	ctx := context.Background()

	err = repo.SaveAll(ctx, []Reference{{Name: "a", Embedding: []float32{1}}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "save_identities", ee.GetContext()["operation"])
	assert.Contains(t, ee.GetContext(), "duration_ms")
	assert.Equal(t, 1, ee.GetContext()["count"])

	_, err = repo.LoadAll(ctx)
	require.Error(t, err)
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "load_identities", ee.GetContext()["operation"])
}

func TestOpenRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	repo, closeFn, err := OpenRepository(BackendJSON, filepath.Join(dir, "a.json"), "")
	require.NoError(t, err)
	assert.IsType(t, &JSONFile{}, repo)
	require.NoError(t, closeFn())

	repo, closeFn, err = OpenRepository(BackendSQLite, "", filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, closeFn())

	_, _, err = OpenRepository("redis", "", "")
	require.Error(t, err)
}
