package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/GroundMC/GroundMCProfileCache/internal/profile"
	"github.com/GroundMC/GroundMCProfileCache/internal/services/engine"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileHandlers wires the HTTP endpoints the event layer calls the cache
// engine through.
type ProfileHandlers struct {
	service *engine.Service
	log     *zap.Logger
}

// NewProfileHandlers creates the handler set over the cache engine.
func NewProfileHandlers(service *engine.Service, log *zap.Logger) *ProfileHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandlers{service: service, log: log}
}

// profileResponse is the wire form of a cache entry.
type profileResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties []propertyPayload `json:"properties"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

type propertyPayload struct {
	Name      string  `json:"name"`
	Value     string  `json:"value"`
	Signature *string `json:"signature,omitempty"`
}

// recordRequest is the body of POST /v1/profiles.
type recordRequest struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties []propertyPayload `json:"properties"`
}

func toResponse(entry *profile.Entry) profileResponse {
	props := make([]propertyPayload, 0, len(entry.Properties))
	for _, p := range entry.Properties {
		props = append(props, propertyPayload{Name: p.Name, Value: p.Value, Signature: p.Signature})
	}
	return profileResponse{
		ID:         entry.ID.String(),
		Name:       entry.Username,
		Properties: props,
		ExpiresAt:  entry.Expire,
	}
}

// GetByName handles GET /v1/profiles/name/{username}
func (h *ProfileHandlers) GetByName(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	entry := h.service.ResolveByName(r.Context(), username)
	if entry == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(entry))
}

// GetByID handles GET /v1/profiles/id/{id}
func (h *ProfileHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "id must be a valid UUID", http.StatusBadRequest)
		return
	}

	entry := h.service.ResolveByID(r.Context(), id)
	if entry == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(entry))
}

// GetBatch handles GET /v1/profiles?names=a,b,c
func (h *ProfileHandlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	names := strings.Split(r.URL.Query().Get("names"), ",")
	var usernames []string
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			usernames = append(usernames, name)
		}
	}
	if len(usernames) == 0 {
		http.Error(w, "names query parameter is required", http.StatusBadRequest)
		return
	}

	resolved := h.service.ResolveByNames(r.Context(), usernames)
	response := make(map[string]profileResponse, len(resolved))
	for username, entry := range resolved {
		response[username] = toResponse(entry)
	}
	h.writeJSON(w, http.StatusOK, response)
}

// Record handles POST /v1/profiles - a freshly fetched profile became
// available. The write is fire-and-forget, so the response is 202.
func (h *ProfileHandlers) Record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		http.Error(w, "id must be a valid UUID", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	props := make(profile.PropertySet, 0, len(req.Properties))
	for _, p := range req.Properties {
		props = append(props, profile.Property{Name: p.Name, Value: p.Value, Signature: p.Signature})
	}

	h.service.RecordProfile(id, req.Name, props)
	w.WriteHeader(http.StatusAccepted)
}

// SessionStart handles POST /v1/sessions/{id} - eager cache warm on session
// start.
func (h *ProfileHandlers) SessionStart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "id must be a valid UUID", http.StatusBadRequest)
		return
	}

	h.service.RefreshSession(id)
	w.WriteHeader(http.StatusAccepted)
}

func (h *ProfileHandlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are out; nothing left to do but note it
		h.log.Debug("response encode failed", zap.Error(err))
	}
}
