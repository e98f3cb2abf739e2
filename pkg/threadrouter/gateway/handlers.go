package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, code int) {
	var resp errorResponse
	resp.Error.Message = msg
	resp.Error.Code = code
	g.writeJSON(w, code, resp)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to encode response", "error", err)
	}
}

func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		g.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeSettingsError maps Manager errors to status codes. A persist failure
// still applied the change in memory, so the body carries the message.
func (g *Gateway) writeSettingsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrCategoryNotFound):
		g.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, settings.ErrTooManyCategories):
		g.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, settings.ErrInvalidCategory):
		g.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		g.logger.Error("configuration update failed", "error", err)
		g.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// ---------- Health ----------

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":       "ok",
		"uptime":       time.Since(g.startedAt).Truncate(time.Second).String(),
		"active_menus": g.router.Registry().Len(),
	}
	if g.health != nil {
		for k, v := range g.health(r.Context()) {
			resp[k] = v
		}
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// ---------- Thread lifecycle ----------

type readyRequest struct {
	ChannelID        string          `json:"channel_id"`
	RecipientIDs     []string        `json:"recipient_ids"`
	ContactInitiated bool            `json:"contact_initiated"`
	GenesisMessageID string          `json:"genesis_message_id"`
	Initiating       menu.MessageRef `json:"initiating"`
}

func (g *Gateway) handleThreadReady(w http.ResponseWriter, r *http.Request) {
	var req readyRequest
	if !g.decode(w, r, &req) {
		return
	}
	ev := menu.ThreadReady{
		Thread: menu.Thread{
			ID:               mux.Vars(r)["id"],
			ChannelID:        req.ChannelID,
			RecipientIDs:     req.RecipientIDs,
			ContactInitiated: req.ContactInitiated,
			GenesisMessageID: req.GenesisMessageID,
		},
		Initiating: req.Initiating,
	}

	m, err := g.router.OnThreadReady(r.Context(), ev)
	switch {
	case errors.Is(err, menu.ErrMenuExists):
		g.writeError(w, err.Error(), http.StatusConflict)
	case err != nil:
		g.writeError(w, err.Error(), http.StatusBadGateway)
	case m == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		g.writeJSON(w, http.StatusCreated, m.Info())
	}
}

type disbandResponse struct {
	Disbanded bool `json:"disbanded"`
}

func (g *Gateway) handleThreadClosed(w http.ResponseWriter, r *http.Request) {
	ok := g.router.OnThreadClosed(r.Context(), mux.Vars(r)["id"])
	g.writeJSON(w, http.StatusOK, disbandResponse{Disbanded: ok})
}

type repliedRequest struct {
	MessageID    string `json:"message_id"`
	FromOperator bool   `json:"from_operator"`
}

func (g *Gateway) handleThreadReplied(w http.ResponseWriter, r *http.Request) {
	var req repliedRequest
	if !g.decode(w, r, &req) {
		return
	}
	ok := g.router.OnThreadReplied(r.Context(), mux.Vars(r)["id"], req.MessageID, req.FromOperator)
	g.writeJSON(w, http.StatusOK, disbandResponse{Disbanded: ok})
}

// ---------- Menus ----------

func (g *Gateway) handleListMenus(w http.ResponseWriter, r *http.Request) {
	list := g.router.Registry().List()
	out := make([]menu.Info, 0, len(list))
	for _, c := range list {
		out = append(out, c.Info())
	}
	g.writeJSON(w, http.StatusOK, out)
}

// ---------- Configuration ----------

func (g *Gateway) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.settings.Snapshot())
}

type toggleResponse struct {
	Enabled bool `json:"enabled"`
}

func (g *Gateway) handleToggle(w http.ResponseWriter, r *http.Request) {
	enabled, err := g.settings.Toggle(r.Context())
	if err != nil {
		g.writeSettingsError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, toggleResponse{Enabled: enabled})
}

func (g *Gateway) handleReset(w http.ResponseWriter, r *http.Request) {
	cfg, err := g.settings.Reset(r.Context())
	if err != nil {
		g.writeSettingsError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, cfg)
}

type categoryRequest struct {
	ID          string                   `json:"id"`
	Label       string                   `json:"label"`
	Description string                   `json:"description"`
	Mentions    []settings.MentionTarget `json:"mentions"`
}

type categoryResponse struct {
	Configured bool `json:"configured"`
}

func (g *Gateway) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !g.decode(w, r, &req) {
		return
	}
	added, err := g.settings.ToggleCategory(r.Context(), settings.Category{
		ID:          req.ID,
		Label:       req.Label,
		Description: req.Description,
		Mentions:    req.Mentions,
	})
	if err != nil {
		g.writeSettingsError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, categoryResponse{Configured: added})
}

func (g *Gateway) handleEditCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !g.decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := g.settings.EditCategory(r.Context(), id, req.Label, req.Description); err != nil {
		g.writeSettingsError(w, err)
		return
	}
	cat, _ := g.settings.Snapshot().Category(id)
	g.writeJSON(w, http.StatusOK, cat)
}

func (g *Gateway) handleSetMentions(w http.ResponseWriter, r *http.Request) {
	var targets []settings.MentionTarget
	if !g.decode(w, r, &targets) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := g.settings.SetMentions(r.Context(), id, targets); err != nil {
		g.writeSettingsError(w, err)
		return
	}
	cat, _ := g.settings.Snapshot().Category(id)
	g.writeJSON(w, http.StatusOK, cat)
}

type descriptionRequest struct {
	Text string `json:"text"`
}

func (g *Gateway) handleSetDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if !g.decode(w, r, &req) {
		return
	}
	text, err := g.settings.SetDescription(r.Context(), req.Text)
	if err != nil {
		g.writeSettingsError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, descriptionRequest{Text: text})
}

type previewResponse struct {
	Variant     string        `json:"variant"`
	Description string        `json:"description"`
	Options     []menu.Option `json:"options"`
}

func (g *Gateway) handlePreview(w http.ResponseWriter, r *http.Request) {
	s := g.router.Strategy()
	d := menu.Preview(s, g.settings.Snapshot())
	g.writeJSON(w, http.StatusOK, previewResponse{
		Variant:     s.Name(),
		Description: d.Description,
		Options:     d.Options,
	})
}
