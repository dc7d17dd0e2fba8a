package http

import "net/http"

// NotFoundHandler answers every unmatched route with the same JSON error
// shape the API handlers use.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no such endpoint")
	})
}
