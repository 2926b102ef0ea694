package handler

import (
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go-auth-service/pkg/apierror"
)

const (
	OpenAPIRoute   = "/openapi.yaml"
	SwaggerUIRoute = "/swagger"
)

var swaggerPage = template.Must(template.New("swagger").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0;background:#fafafa;}#swagger-ui{max-width:1200px;margin:0 auto;}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: {{.SpecURL}},
        dom_id: '#swagger-ui',
        deepLinking: true,
        persistAuthorization: true
      });
    </script>
  </body>
</html>
`))

const swaggerCSP = "default-src 'self'; connect-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https://validator.swagger.io"

// DocsHandler publishes the OpenAPI document from disk and a Swagger UI page
// pointing at it. The file is re-read per request so edits show up without a
// restart.
type DocsHandler struct {
	specPath string
	title    string
}

func NewDocsHandler(specPath string) *DocsHandler {
	return &DocsHandler{specPath: strings.TrimSpace(specPath), title: "Auth Service API"}
}

func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	if h.specPath == "" {
		writeError(w, r, apierror.New("DOCS_UNAVAILABLE", "API documentation is not configured", "", http.StatusNotFound))
		return
	}

	f, err := os.Open(h.specPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("openapi document unreadable", "path", h.specPath, "error", err)
		}
		writeError(w, r, apierror.New("DOCS_UNAVAILABLE", "API documentation is not available", "", http.StatusNotFound))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, r, apierror.New("DOCS_UNAVAILABLE", "API documentation is not available", "", http.StatusNotFound))
		return
	}

	w.Header().Set("Content-Type", specContentType(h.specPath))
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *DocsHandler) SwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Security-Policy", swaggerCSP)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := swaggerPage.Execute(w, struct{ Title, SpecURL string }{h.title, OpenAPIRoute}); err != nil {
		slog.Warn("swagger page render failed", "error", err)
	}
}

func specContentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "application/json"
	}
	return "application/yaml"
}
