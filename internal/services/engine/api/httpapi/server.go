// Package httpapi exposes the engine over JSON HTTP. Authentication is
// delegated to the edge; handlers trust the actor identity headers the
// gateway injects.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/beaconreign/engine/internal/services/engine/recorder"
	"github.com/beaconreign/engine/internal/services/engine/registry"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

// Identity headers set by the gateway after it authenticates the caller.
const (
	headerActorID = "X-Actor-ID"
	headerAdmin   = "X-Actor-Admin"
)

// Server holds the handler dependencies.
type Server struct {
	registry *registry.Registry
	recorder *recorder.Recorder
	store    storage.Store
	clock    func() time.Time
}

// NewServer creates the HTTP handler set. A nil clock defaults to time.Now.
func NewServer(reg *registry.Registry, rec *recorder.Recorder, store storage.Store, clock func() time.Time) *Server {
	if clock == nil {
		clock = time.Now
	}
	return &Server{registry: reg, recorder: rec, store: store, clock: clock}
}

// NewRouter mounts every engine route.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods("GET")

	r.HandleFunc("/beacons", s.createBeacon).Methods("POST")
	r.HandleFunc("/beacons", s.listBeacons).Methods("GET")
	r.HandleFunc("/beacons/{id}", s.getBeacon).Methods("GET")
	r.HandleFunc("/beacons/{id}", s.updateBeacon).Methods("PATCH")
	r.HandleFunc("/beacons/{id}", s.deleteBeacon).Methods("DELETE")
	r.HandleFunc("/beacons/{id}/scan", s.recordScan).Methods("POST")
	r.HandleFunc("/beacons/{id}/scans", s.listScans).Methods("GET")

	r.HandleFunc("/venues/{id}/claim", s.getClaim).Methods("GET")
	r.HandleFunc("/venues/{id}/claim", s.vacateClaim).Methods("DELETE")
	r.HandleFunc("/actors/{id}/ledger", s.getLedger).Methods("GET")
	r.HandleFunc("/actors/{id}/adjustments", s.adjustLedger).Methods("POST")
	r.HandleFunc("/actors/{id}/anomaly", s.getAnomaly).Methods("GET")

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerIdentity extracts the gateway-injected actor identity.
func callerIdentity(r *http.Request) (actorID string, admin bool) {
	actorID = strings.TrimSpace(r.Header.Get(headerActorID))
	admin = strings.EqualFold(r.Header.Get(headerAdmin), "true")
	return actorID, admin
}
