package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/similarity/internal/api/handlers"
	"github.com/formbricks/similarity/internal/embeddings"
	"github.com/formbricks/similarity/internal/service"
)

// newAPIServer serves the real similarity handler over the deterministic mock provider.
func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc := service.NewSimilarityService(service.SimilarityServiceParams{
		EmbeddingClient: embeddings.NewMockClient(),
		Provider:        "mock",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /semantic-similarity", handlers.NewSimilarityHandler(svc).Compare)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRun_ReportsBestMatch(t *testing.T) {
	t.Chdir(t.TempDir())

	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "essay.txt")

	writeFile(t, target, "the cat sat on the mat")
	writeFile(t, filepath.Join(dir, "copy.txt"), "the cat sat on the mat")
	writeFile(t, filepath.Join(dir, "other.txt"), "stock markets fell sharply today")
	writeFile(t, filepath.Join(dir, "scan.pdf"), "%PDF-1.7")

	var stdout, stderr bytes.Buffer

	code := run([]string{"-target", target, "-dir", dir, "-api-url", newAPIServer(t).URL}, &stdout, &stderr)
	require.Equal(t, exitSuccess, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Compared with: copy.txt")
	assert.Contains(t, out, "Compared with: other.txt")
	assert.NotContains(t, out, "scan.pdf")
	assert.Contains(t, out, "Jaccard similarity:      100.00%")
	assert.Contains(t, out, "KMP exact matches:       1")
	assert.Contains(t, out, "Levenshtein distance:    0")
	assert.Contains(t, out, "Semantic similarity:     100.00%")
	assert.Contains(t, out, "Most similar document: copy.txt")

	assert.Contains(t, stderr.String(), "skipping unsupported file")
}

func TestRun_Usage(t *testing.T) {
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer

	assert.Equal(t, exitUsage, run([]string{"-dir", "x"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), errTargetRequired.Error())

	stderr.Reset()
	assert.Equal(t, exitUsage, run([]string{"-target", "x"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), errDirRequired.Error())

	assert.Equal(t, exitSuccess, run([]string{"-h"}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
}

func TestRun_NoDocuments(t *testing.T) {
	t.Chdir(t.TempDir())

	target := filepath.Join(t.TempDir(), "essay.txt")
	writeFile(t, target, "text")

	var stdout, stderr bytes.Buffer

	code := run([]string{"-target", target, "-dir", t.TempDir(), "-api-url", newAPIServer(t).URL}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "no supported documents found")
}

func TestRun_EmptyDocumentFails(t *testing.T) {
	t.Chdir(t.TempDir())

	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "essay.txt")

	writeFile(t, target, "the cat sat")
	writeFile(t, filepath.Join(dir, "blank.txt"), "  \n")

	var stdout, stderr bytes.Buffer

	code := run([]string{"-target", target, "-dir", dir, "-api-url", newAPIServer(t).URL}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "blank.txt")
	assert.Contains(t, stderr.String(), "Missing input")
}
