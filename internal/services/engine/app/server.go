// Package app wires engine dependencies into runnable server and worker
// processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/beaconreign/engine/internal/platform/timeouts"
	"github.com/beaconreign/engine/internal/services/engine/api/feed"
	"github.com/beaconreign/engine/internal/services/engine/api/httpapi"
	"github.com/beaconreign/engine/internal/services/engine/notify"
	"github.com/beaconreign/engine/internal/services/engine/recorder"
	"github.com/beaconreign/engine/internal/services/engine/registry"
	enginesqlite "github.com/beaconreign/engine/internal/services/engine/storage/sqlite"
	"github.com/beaconreign/engine/internal/services/engine/tuning"
)

// ServerConfig controls HTTP server startup and dependencies.
type ServerConfig struct {
	Port       int
	DBPath     string
	TuningPath string
	// MQTTBroker enables the MQTT notification dispatcher when set.
	MQTTBroker string
	MQTTPrefix string
	// ElevatedActors lists actor IDs granted elevated membership, a stand-in
	// for the entitlement service at the edge.
	ElevatedActors []string
}

const (
	defaultServerPort = 8080
	defaultDBPath     = "data/engine.db"
)

// RunServer starts the engine HTTP server and blocks until ctx is canceled.
func RunServer(ctx context.Context, cfg ServerConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultServerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := enginesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close sqlite store: %v", closeErr)
		}
	}()

	tun, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg.MQTTBroker, cfg.MQTTPrefix)
	if err != nil {
		return fmt.Errorf("connect notification broker: %w", err)
	}
	defer closeDispatcher()

	memberships := recorder.StaticMemberships{}
	for _, actorID := range cfg.ElevatedActors {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			memberships[actorID] = true
		}
	}

	reg := registry.New(store, nil)
	rec := recorder.New(store, memberships, dispatcher, tun, nil)

	router := httpapi.NewRouter(httpapi.NewServer(reg, rec, store, nil))
	router.HandleFunc("/feed", feed.NewServer(store).Handler())

	var handler http.Handler = router
	handler = handlers.RecoveryHandler()(handler)
	handler = handlers.LoggingHandler(os.Stdout, handler)
	handler = otelhttp.NewHandler(handler, "engine")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	log.Printf("engine server listening at %s", srv.Addr)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newDispatcher selects the notification transport. Without a broker the
// server logs notifications locally.
func newDispatcher(broker, prefix string) (notify.Dispatcher, func(), error) {
	if strings.TrimSpace(broker) == "" {
		return notify.LogDispatcher{}, func() {}, nil
	}
	mqtt, err := notify.NewMQTTDispatcher(broker, prefix)
	if err != nil {
		return nil, nil, err
	}
	return mqtt, mqtt.Close, nil
}

// clockNow is the production clock used by the worker runtime.
func clockNow() time.Time {
	return time.Now()
}
