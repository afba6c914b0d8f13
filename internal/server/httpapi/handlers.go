// Package httpapi exposes the sync protocol over HTTP+JSON: push and pull
// of case batches, the per-device watermark, the dictionary registry, and
// login. The URL layout and headers are what deployed interviewing clients
// already speak.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"casesync/internal/clock"
	"casesync/internal/common"
	"casesync/internal/logging"
	"casesync/internal/server/models"
	"casesync/internal/server/services"
	"casesync/pkg/api"
)

// Device identification headers sent by clients on every sync request.
const (
	HeaderDevice   = "X-CSW-Device"
	HeaderUniverse = "X-CSW-Universe"
)

// Syncer is the synchronization surface the handlers call.
type Syncer interface {
	Push(ctx context.Context, device, username, dictionary, universe string, batch []*models.Case) (*services.PushResult, error)
	Pull(ctx context.Context, device, username, dictionary, universe string, sinceRevision int64) (*services.PullResult, error)
	ResumeWatermark(ctx context.Context, device, dictionary string) (int64, error)
}

// Authenticator mints bearer tokens for operator credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*services.Token, error)
}

// DictionaryRegistry manages registered dictionaries.
type DictionaryRegistry interface {
	Save(ctx context.Context, name, label, content string) (*models.Dictionary, error)
	List(ctx context.Context) ([]*models.Dictionary, error)
}

type handlers struct {
	sync         Syncer
	users        Authenticator
	dictionaries DictionaryRegistry
	logger       logging.Logger
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, api.TokenResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
	})
}

func (h *handlers) push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	device := r.Header.Get(HeaderDevice)
	if device == "" {
		writeError(w, http.StatusBadRequest, "missing "+HeaderDevice+" header")
		return
	}
	universe := r.Header.Get(HeaderUniverse)
	username, _ := Username(ctx)

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Malformed entries are rejected individually; the rest of the batch
	// still syncs.
	batch := make([]*models.Case, 0, len(req.Cases))
	var rejected []string
	for _, in := range req.Cases {
		c, err := toModelCase(in)
		if err != nil {
			h.logger.Warn(ctx, "rejected case", "id", in.ID, "error", err)
			rejected = append(rejected, in.ID)
			continue
		}
		batch = append(batch, c)
	}

	res, err := h.sync.Push(ctx, device, username, r.PathValue("dict"), universe, batch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	for _, guid := range res.Rejected {
		rejected = append(rejected, guid.String())
	}
	writeJSON(w, http.StatusOK, api.PushResponse{
		Revision: res.Revision,
		Accepted: res.Accepted,
		Rejected: rejected,
	})
}

func (h *handlers) pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	device := r.Header.Get(HeaderDevice)
	if device == "" {
		writeError(w, http.StatusBadRequest, "missing "+HeaderDevice+" header")
		return
	}
	universe := r.Header.Get(HeaderUniverse)
	username, _ := Username(ctx)

	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		var err error
		since, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
	}

	res, err := h.sync.Pull(ctx, device, username, r.PathValue("dict"), universe, since)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]api.Case, 0, len(res.Cases))
	for _, c := range res.Cases {
		converted, err := toAPICase(c)
		if err != nil {
			h.logger.Error(ctx, "stored case cannot be served", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		out = append(out, converted)
	}
	writeJSON(w, http.StatusOK, api.PullResponse{Cases: out, Revision: res.Revision})
}

func (h *handlers) watermark(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")
	if device == "" {
		writeError(w, http.StatusBadRequest, "missing device parameter")
		return
	}

	revision, err := h.sync.ResumeWatermark(r.Context(), device, r.PathValue("dict"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.WatermarkResponse{Revision: revision})
}

func (h *handlers) listDictionaries(w http.ResponseWriter, r *http.Request) {
	list, err := h.dictionaries.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]api.Dictionary, 0, len(list))
	for _, d := range list {
		out = append(out, api.Dictionary{Name: d.Name, Label: d.Label})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) saveDictionary(w http.ResponseWriter, r *http.Request) {
	var req api.Dictionary
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "name and content are required")
		return
	}

	d, err := h.dictionaries.Save(r.Context(), req.Name, req.Label, req.Content)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.Dictionary{Name: d.Name, Label: d.Label})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps service errors onto protocol status codes.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrDictionaryUnknown):
		writeError(w, http.StatusNotFound, "unknown dictionary")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrScopeWidened):
		writeError(w, http.StatusPreconditionFailed, "universe wider than previous sync")
	case errors.Is(err, clock.ErrInvalidClockFormat):
		writeError(w, http.StatusBadRequest, "invalid clock format")
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
