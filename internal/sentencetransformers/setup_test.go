package sentencetransformers

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.py")

	require.NoError(t, writeIfChanged(path, []byte("v1"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, writeIfChanged(path, []byte("v1"), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.WithinDuration(t, old, info.ModTime(), time.Second, "unchanged content is not rewritten")

	require.NoError(t, writeIfChanged(path, []byte("v2"), 0o644))

	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestEnvironmentLayout(t *testing.T) {
	dir := t.TempDir()
	env := &environment{dir: dir, basePython: "python3", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	assert.Equal(t, filepath.Join(dir, "python", scriptName), env.scriptPath())
	assert.Equal(t, filepath.Join(dir, "python", requirementsName), env.requirementsPath())
	assert.Equal(t, filepath.Join(dir, "models"), env.modelsDir())
	assert.Contains(t, env.venvBin("python"), filepath.Join(dir, "venv"))
}

func TestEmbeddedAssets(t *testing.T) {
	assert.Contains(t, string(encodeServerScript), "SentenceTransformer")
	assert.Contains(t, string(encodeServerScript), `"embedding_dim"`)
	assert.Contains(t, string(requirements), "sentence-transformers")
}

func TestEnvironment_MissingPython(t *testing.T) {
	env := &environment{
		dir:        t.TempDir(),
		basePython: filepath.Join(t.TempDir(), "no-such-python"),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	err := env.prepare(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not usable")

	// The script is extracted before the interpreter is checked.
	_, statErr := os.Stat(env.scriptPath())
	assert.NoError(t, statErr)
}
