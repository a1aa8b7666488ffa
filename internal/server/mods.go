package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EditMySave/HyOS-sub001/internal/mods"
	"github.com/EditMySave/HyOS-sub001/internal/validate"
)

type modsResponse struct {
	Mods  []mods.Mod `json:"mods"`
	Count int        `json:"count"`
}

type actionResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Mod     *mods.Mod `json:"mod,omitempty"`
}

// listMods handles GET /api/mods
func (s *Server) listMods(w http.ResponseWriter, r *http.Request) {
	list, err := s.mods.List()
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, modsResponse{Mods: list, Count: len(list)})
}

// getMod handles GET /api/mods/{id}
func (s *Server) getMod(w http.ResponseWriter, r *http.Request) {
	mod, err := s.mods.Get(r.PathValue("id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mod)
}

// uploadMod handles POST /api/mods/upload (multipart form, field "file")
func (s *Server) uploadMod(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, mods.MaxArchiveSize+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, http.StatusRequestEntityTooLarge, mods.ErrTooLarge.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Size > mods.MaxArchiveSize {
		respondError(w, http.StatusRequestEntityTooLarge, mods.ErrTooLarge.Error())
		return
	}

	mod, replaced, err := s.mods.Upload(header.Filename, file)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	msg := "Installed " + mod.FileName
	if replaced {
		msg = "Updated " + mod.FileName
	}
	respondJSON(w, http.StatusOK, actionResponse{Success: true, Message: msg, Mod: mod})
}

// deleteMod handles DELETE /api/mods/{id}
func (s *Server) deleteMod(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.mods.Delete(id); err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Deleted " + id})
}

// patchMod handles POST /api/mods/{id}/patch
func (s *Server) patchMod(w http.ResponseWriter, r *http.Request) {
	mod, err := s.mods.Patch(r.PathValue("id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Patched " + mod.FileName, Mod: mod})
}

// toggleMod handles POST /api/mods/{id}/toggle
func (s *Server) toggleMod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	id := r.PathValue("id")
	if err := s.mods.Toggle(id, *req.Enabled); err != nil {
		respondFailure(w, r, err)
		return
	}
	msg := "Disabled " + id
	if *req.Enabled {
		msg = "Enabled " + id
	}
	respondJSON(w, http.StatusOK, actionResponse{Success: true, Message: msg})
}

// linkMod handles POST /api/mods/{id}/link
func (s *Server) linkMod(w http.ResponseWriter, r *http.Request) {
	var req mods.LinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := validate.Link(string(req.Provider), req.ProviderModID); res.HasErrors() {
		respondInvalid(w, "Invalid link request", res)
		return
	}

	entry, err := s.mods.Link(r.Context(), r.PathValue("id"), req)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "entry": entry})
}

// checkUpdates handles GET /api/mods/updates
func (s *Server) checkUpdates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.mods.CheckUpdates(r.Context()))
}

// loadedPlugins handles GET /api/mods/loaded. A stopped server is normal and
// yields an empty list.
func (s *Server) loadedPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.game.LoadedPlugins(r.Context())
	if err != nil {
		slog.Debug("loaded plugins unavailable", "error", err)
		respondJSON(w, http.StatusOK, map[string]any{"count": 0, "plugins": []any{}})
		return
	}
	respondJSON(w, http.StatusOK, plugins)
}
