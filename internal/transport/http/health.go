package http

import (
	stdhttp "net/http"
)

// HealthHandler answers load-balancer liveness probes. It deliberately does
// not touch the database; readiness of the pool is the serve command's job.
func HealthHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
