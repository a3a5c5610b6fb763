// Package middleware provides HTTP handler wrappers for the file server.
package middleware

import "net/http"

const (
	HeaderEmbedderPolicy = "Cross-Origin-Embedder-Policy"
	HeaderOpenerPolicy   = "Cross-Origin-Opener-Policy"
)

// CrossOriginIsolation marks every response as cross-origin isolated so the
// page may use SharedArrayBuffer and threaded WebAssembly. Headers are set
// before the wrapped handler runs, so error responses carry them too.
func CrossOriginIsolation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set(HeaderEmbedderPolicy, "require-corp")
			h.Set(HeaderOpenerPolicy, "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}
