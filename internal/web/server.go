// Package web serves the optional dashboard client.
package web

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type Server struct {
	Dir string
}

// Handler serves files from Dir. Paths that do not name a file fall back to
// index.html so client-side routes survive a reload; /api/ paths never do.
func (s *Server) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.Dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		if strings.HasPrefix(r.URL.Path, "/api/") || s.exists(r.URL.Path) {
			fs.ServeHTTP(w, r)
			return
		}
		index := filepath.Join(s.Dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

func (s *Server) exists(urlPath string) bool {
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		return true
	}
	info, err := os.Stat(filepath.Join(s.Dir, filepath.FromSlash(clean)))
	return err == nil && !info.IsDir()
}
