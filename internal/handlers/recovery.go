package handlers

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"brain2-assistant/internal/infrastructure/observability"
)

// recoverer turns a panic in a route into a logged 500 so the proxy still
// returns a response to API Gateway.
func (w *Webhook) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			w.events.LogError(r.Context(), "webhook_panic", fmt.Errorf("panic: %v", rec), observability.Details{
				"path":  r.URL.Path,
				"stack": string(debug.Stack()),
			})
			if rw.Header().Get("Content-Type") == "" {
				writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(rw, r)
	})
}
