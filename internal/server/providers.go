package server

import (
	"net/http"

	"github.com/EditMySave/HyOS-sub001/internal/mods"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/settings"
	"github.com/EditMySave/HyOS-sub001/internal/validate"
)

// browse handles POST /api/mods/browse with a {params} body
func (s *Server) browse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params provider.SearchParams `json:"params"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := validate.SearchParams(req.Params); res.HasErrors() {
		respondInvalid(w, "Invalid search parameters", res)
		return
	}

	result := s.search.Search(r.Context(), req.Params.Normalize(), s.settings.Effective())
	respondJSON(w, http.StatusOK, result)
}

// install handles POST /api/mods/install
func (s *Server) install(w http.ResponseWriter, r *http.Request) {
	var req mods.InstallRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := validate.Install(string(req.Provider), &req.Version); res.HasErrors() {
		respondInvalid(w, "Invalid install request", res)
		return
	}

	mod, err := s.mods.Install(r.Context(), req)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Installed " + mod.FileName, Mod: mod})
}

// listProviders handles GET /api/mods/providers
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"providers": provider.Describe()})
}

// modDetails handles GET /api/mods/providers/{provider}/mods/{modId}
func (s *Server) modDetails(w http.ResponseWriter, r *http.Request) {
	id, err := provider.ParseID(r.PathValue("provider"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid provider")
		return
	}
	details, err := s.mods.Details(r.Context(), id, r.PathValue("modId"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

type settingsResponse struct {
	Providers []settings.PublicProvider `json:"providers"`
}

// getSettings handles GET /api/mods/providers/settings
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, settingsResponse{Providers: s.settings.Public()})
}

// putSettings handles PUT /api/mods/providers/settings
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		settings.Update
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := validate.SettingsUpdate(req.Provider, req.Update); res.HasErrors() {
		respondInvalid(w, "Invalid provider settings", res)
		return
	}

	if _, err := s.settings.Save(provider.ID(req.Provider), req.Update); err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, settingsResponse{Providers: s.settings.Public()})
}

// deleteKey handles DELETE /api/mods/providers/settings/{provider}/key
func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := provider.ParseID(r.PathValue("provider"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid provider")
		return
	}
	if _, err := s.settings.ResetKey(id); err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, settingsResponse{Providers: s.settings.Public()})
}
