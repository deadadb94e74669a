package http

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

var fileNamePattern = regexp.MustCompile(`^.*[.][a-zA-Z\d]+$`)

// SPAHandler sirve los assets estáticos y devuelve index.html para rutas del cliente.
type SPAHandler struct {
	appName   string
	staticDir string
}

func NewSPAHandler(appName, staticDir string) *SPAHandler {
	return &SPAHandler{appName: appName, staticDir: staticDir}
}

// NoRoute se registra como fallback del router.
func (h *SPAHandler) NoRoute(c *gin.Context) {
	path := c.Request.URL.Path
	if isBackendPath(path) || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
		writeProblem(c, h.appName, simpleProblem(http.StatusNotFound, "Not Found", "error.http.404"))
		return
	}

	trimmed := strings.TrimRight(path, "/")
	if fileNamePattern.MatchString(trimmed) {
		h.serveFile(c, trimmed)
		return
	}
	h.serveFile(c, "/index.html")
}

func (h *SPAHandler) serveFile(c *gin.Context, name string) {
	if h.staticDir == "" {
		c.Status(http.StatusNotFound)
		return
	}
	full := filepath.Join(h.staticDir, filepath.FromSlash(filepath.Clean("/"+name)))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(full)
}

func isBackendPath(path string) bool {
	for _, prefix := range []string{"/api", "/management"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
