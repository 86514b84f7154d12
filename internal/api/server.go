// Package api serves the entity REST surface and the websocket event stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/core"
	"github.com/joshp123/omhome/internal/diagnostics"
	"github.com/joshp123/omhome/internal/entity"
	"github.com/joshp123/omhome/internal/resource"
)

// Entities is the entity service surface used by the handlers.
type Entities interface {
	States() []entity.State
	State(key string) (entity.State, error)
	Do(ctx context.Context, key string, a entity.Action) error
}

// Coordinator is the snapshot owner.
type Coordinator interface {
	Data() *resource.Snapshot
	LastUpdateSuccess() bool
	LastError() error
	LastUpdated() time.Time
	Refresh(ctx context.Context) (*resource.Snapshot, error)
	RequestRefresh()
}

// Diagnostics produces the redacted report.
type Diagnostics interface {
	Report() diagnostics.Report
}

// Health reports plugin status.
type Health interface {
	Summaries() []core.PluginSummary
	Healthy() bool
	Docs(pluginID string) (string, bool)
}

// Deps wires the server. Metrics and Dashboards are optional and mounted at
// /metrics and /dashboards/.
type Deps struct {
	Entities    Entities
	Coordinator Coordinator
	Diagnostics Diagnostics
	Health      Health
	Metrics     http.Handler
	Dashboards  http.Handler
	Log         *logrus.Entry
	Version     string
}

type Server struct {
	entities    Entities
	coord       Coordinator
	diagnostics Diagnostics
	health      Health
	metrics     http.Handler
	dashboards  http.Handler
	hub         *Hub
	log         *logrus.Entry
	version     string
}

func New(deps Deps) (*Server, error) {
	if deps.Entities == nil {
		return nil, errors.New("api: entities are required")
	}
	if deps.Coordinator == nil {
		return nil, errors.New("api: coordinator is required")
	}
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		entities:    deps.Entities,
		coord:       deps.Coordinator,
		diagnostics: deps.Diagnostics,
		health:      deps.Health,
		metrics:     deps.Metrics,
		dashboards:  deps.Dashboards,
		hub:         NewHub(log),
		log:         log,
		version:     deps.Version,
	}, nil
}

// Hub returns the websocket hub so callers can broadcast snapshot changes.
func (s *Server) Hub() *Hub { return s.hub }

// PublishStates pushes the current entity states to websocket clients.
func (s *Server) PublishStates() {
	s.hub.Broadcast(EventEntities, s.entities.States())
}

// Handler returns the complete HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}
