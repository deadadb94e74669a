package http

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStatic(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestSPA_ServesIndexForClientRoutes(t *testing.T) {
	s := newTestServer(t)
	writeStatic(t, s.cfg.StaticDir, "index.html", "<html>app</html>")

	for _, path := range []string{"/", "/account/settings", "/admin/user-management/"} {
		rec := performRequest(s.router, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "<html>app</html>", path)
	}
}

func TestSPA_ServesAssets(t *testing.T) {
	s := newTestServer(t)
	writeStatic(t, s.cfg.StaticDir, "index.html", "<html>app</html>")
	writeStatic(t, s.cfg.StaticDir, "app/main.js", "console.log('ok')")

	rec := performRequest(s.router, http.MethodGet, "/app/main.js", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")

	rec = performRequest(s.router, http.MethodGet, "/app/missing.css", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSPA_BackendPathsStay404(t *testing.T) {
	s := newTestServer(t)
	writeStatic(t, s.cfg.StaticDir, "index.html", "<html>app</html>")

	for _, path := range []string{"/api/unknown", "/management/unknown", "/api"} {
		rec := performRequest(s.router, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "<html>", path)
		assert.Equal(t, problemContentType, rec.Header().Get("Content-Type"), path)
	}
}

func TestSPA_NoIndexAvailable(t *testing.T) {
	s := newTestServer(t)

	rec := performRequest(s.router, http.MethodGet, "/dashboard", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSPA_DoesNotEscapeStaticDir(t *testing.T) {
	s := newTestServer(t)
	parent := filepath.Dir(s.cfg.StaticDir)
	writeStatic(t, parent, "secret.txt", "top secret")

	rec := performRequest(s.router, http.MethodGet, "/../secret.txt", "", "")
	assert.NotContains(t, rec.Body.String(), "top secret")
}

func TestFileNamePattern(t *testing.T) {
	cases := map[string]bool{
		"/main.js":          true,
		"/assets/logo.png":  true,
		"/i18n/en.json":     true,
		"/account/settings": false,
		"/admin":            false,
		"/weird.":           false,
	}
	for path, want := range cases {
		assert.Equal(t, want, fileNamePattern.MatchString(path), path)
	}
}
