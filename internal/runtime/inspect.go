package runtime

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/statetree/internal/runtime/jsoncodec"
)

// snapshotView is the wire shape of GET /api/snapshot.
type snapshotView struct {
	EntityCounts map[string]int        `json:"entity_counts"`
	Requests     map[RequestID]Request `json:"requests"`
	LastRequest  RequestID             `json:"last_request"`
}

// InspectHandler serves a read-only JSON view of the tree:
//
//	GET /api/snapshot                entity counts and request records
//	GET /api/requests/{id}           one request record
//	GET /api/records/{type}/{id}     a denormalized record
//	GET /api/metrics                 RequestMetrics snapshot (metrics enabled)
//	GET /metrics                     Prometheus exposition (metrics enabled)
func (t *StateTree) InspectHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/snapshot", t.handleGetSnapshot)
	mux.HandleFunc("GET /api/requests/{id}", t.handleGetRequest)
	mux.HandleFunc("GET /api/records/{type}/{id}", t.handleGetRecord)
	if t.metrics != nil {
		mux.HandleFunc("GET /api/metrics", t.handleGetMetrics)
		mux.Handle("GET /metrics", promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{}))
	}
	return t.withCORS(mux)
}

func (t *StateTree) handleGetSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := t.Snapshot()
	view := snapshotView{
		EntityCounts: make(map[string]int, len(snap.Entities)),
		Requests:     snap.Requests,
		LastRequest:  t.ledger.Last(),
	}
	for typ, byID := range snap.Entities {
		view.EntityCounts[typ] = len(byID)
	}
	t.writeJSON(w, http.StatusOK, view)
}

func (t *StateTree) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}
	req, ok := SelectRequest(t.Snapshot(), RequestID(id))
	if !ok {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}
	t.writeJSON(w, http.StatusOK, req)
}

func (t *StateTree) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := SelectRecord(t.Snapshot(), r.PathValue("type"), r.PathValue("id"))
	if !ok {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	t.writeJSON(w, http.StatusOK, record)
}

func (t *StateTree) handleGetMetrics(w http.ResponseWriter, _ *http.Request) {
	t.writeJSON(w, http.StatusOK, t.metrics.GetSnapshot())
}

func (t *StateTree) writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := jsoncodec.Marshal(v)
	if err != nil {
		t.Logger.Error("Failed to encode inspection response", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (t *StateTree) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := t.allowedOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (t *StateTree) allowedOrigin(origin string) string {
	for _, allowed := range t.Conf.InspectAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

func gathererFor(registerer prometheus.Registerer) prometheus.Gatherer {
	if g, ok := registerer.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}
