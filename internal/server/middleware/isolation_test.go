package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrossOriginIsolation(t *testing.T) {
	tests := []struct {
		name    string
		handler http.Handler
		status  int
	}{
		{
			name: "ok",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}),
			status: http.StatusOK,
		},
		{
			name:    "not found",
			handler: http.NotFoundHandler(),
			status:  http.StatusNotFound,
		},
		{
			name: "error response",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			CrossOriginIsolation()(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "require-corp", rec.Header().Get(HeaderEmbedderPolicy))
			assert.Equal(t, "same-origin", rec.Header().Get(HeaderOpenerPolicy))
		})
	}
}
