// Package site serves the embedded operator documentation under /docs/.
package site

import (
	"context"
	"net/http"
)

// Register attaches the documentation routes to mux. /docs redirects to
// /docs/, everything below it is served from the embedded static tree.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("/docs", http.RedirectHandler("/docs/", http.StatusMovedPermanently))
	mux.Handle("/docs/", http.StripPrefix("/docs/", readOnly(http.FileServer(FS()))))
}

func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
