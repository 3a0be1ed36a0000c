package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optix-bridge/optix-bridge/internal/conf"
	"github.com/optix-bridge/optix-bridge/internal/identity"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Identity.Backend = identity.BackendJSON
	s.Identity.DBPath = filepath.Join(t.TempDir(), "known_faces.json")
	s.Identity.Threshold = identity.DefaultThreshold
	return s
}

func run(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestAddListRemove(t *testing.T) {
	settings := testSettings(t)

	_, err := run(t, settings, "add", "alice", "--embedding", "1, 0, 0")
	require.NoError(t, err)
	_, err = run(t, settings, "add", "bob", "--embedding", "0,1,0")
	require.NoError(t, err)

	out, err := run(t, settings, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Less(t, bytes.Index([]byte(out), []byte("alice")), bytes.Index([]byte(out), []byte("bob")))

	out, err = run(t, settings, "remove", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "removed alice")

	store := identity.NewStore()
	require.NoError(t, store.Load(settings.Identity.DBPath))
	assert.Equal(t, []string{"bob"}, store.Names())
}

func TestAddFromFile(t *testing.T) {
	settings := testSettings(t)
	path := filepath.Join(t.TempDir(), "emb.json")
	require.NoError(t, os.WriteFile(path, []byte("[0.5, 0.25]"), 0o600))

	_, err := run(t, settings, "add", "carol", "--from-file", path)
	require.NoError(t, err)

	store := identity.NewStore()
	require.NoError(t, store.Load(settings.Identity.DBPath))
	emb, ok := store.Embedding("carol")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.25}, emb)
}

func TestAddRejectsBadEmbedding(t *testing.T) {
	settings := testSettings(t)

	_, err := run(t, settings, "add", "alice", "--embedding", "1,x")
	require.Error(t, err)

	_, err = run(t, settings, "add", "alice")
	require.Error(t, err)

	_, statErr := os.Stat(settings.Identity.DBPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestListMissingDatabaseFails(t *testing.T) {
	_, err := run(t, testSettings(t), "list")
	require.Error(t, err)
}

func TestImportMergesAndExport(t *testing.T) {
	settings := testSettings(t)
	_, err := run(t, settings, "add", "alice", "--embedding", "1,0")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "import.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"bob":[0,1],"alice":[0.5,0.5]}`), 0o600))

	out, err := run(t, settings, "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 identities, 2 total")

	dst := filepath.Join(t.TempDir(), "export.json")
	_, err = run(t, settings, "export", dst)
	require.NoError(t, err)

	exported := identity.NewStore()
	require.NoError(t, exported.Load(dst))
	assert.Equal(t, []string{"alice", "bob"}, exported.Names())
	emb, _ := exported.Embedding("alice")
	assert.Equal(t, []float32{0.5, 0.5}, emb)
}
