package health

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aml-go/aml"
)

// Router returns a chi.Router serving GET /healthz with a JSON encoding
// of Snapshot(loop), the same shape the package doc promises embedding
// applications: a readiness endpoint with nothing to check, only a
// counter view of the reactor to report.
func Router(loop *aml.Loop) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		report := Snapshot(loop)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	})
	return r
}
