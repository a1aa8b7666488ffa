// Package server exposes the mod subsystem over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/EditMySave/HyOS-sub001/internal/aggregator"
	"github.com/EditMySave/HyOS-sub001/internal/gameapi"
	"github.com/EditMySave/HyOS-sub001/internal/mods"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/settings"
)

// Searcher runs an aggregated provider search.
type Searcher interface {
	Search(ctx context.Context, params provider.SearchParams, cfg settings.Settings) *aggregator.Result
}

// GameServer is the running game server's REST plugin.
type GameServer interface {
	Health(ctx context.Context) bool
	LoadedPlugins(ctx context.Context) (*gameapi.Plugins, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	mods     *mods.Manager
	search   Searcher
	settings *settings.Store
	game     GameServer
}

// New creates a server.
func New(m *mods.Manager, search Searcher, st *settings.Store, game GameServer) *Server {
	return &Server{mods: m, search: search, settings: st, game: game}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Installed mods
	mux.HandleFunc("GET /api/mods", s.listMods)
	mux.HandleFunc("GET /api/mods/{id}", s.getMod)
	mux.HandleFunc("POST /api/mods/upload", s.uploadMod)
	mux.HandleFunc("DELETE /api/mods/{id}", s.deleteMod)
	mux.HandleFunc("POST /api/mods/{id}/patch", s.patchMod)
	mux.HandleFunc("POST /api/mods/{id}/toggle", s.toggleMod)
	mux.HandleFunc("POST /api/mods/{id}/link", s.linkMod)
	mux.HandleFunc("GET /api/mods/updates", s.checkUpdates)
	mux.HandleFunc("GET /api/mods/loaded", s.loadedPlugins)

	// Provider search and install
	mux.HandleFunc("POST /api/mods/browse", s.browse)
	mux.HandleFunc("POST /api/mods/install", s.install)
	mux.HandleFunc("GET /api/mods/providers", s.listProviders)
	mux.HandleFunc("GET /api/mods/providers/{provider}/mods/{modId}", s.modDetails)

	// Provider settings
	mux.HandleFunc("GET /api/mods/providers/settings", s.getSettings)
	mux.HandleFunc("PUT /api/mods/providers/settings", s.putSettings)
	mux.HandleFunc("DELETE /api/mods/providers/settings/{provider}/key", s.deleteKey)

	mux.HandleFunc("GET /healthz", s.healthz)

	return withRequestLog(mux)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"gameServer": s.game.Health(r.Context()),
	})
}
