package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/clustering"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/mixes"
	catalogsync "github.com/justestif/go-jellyfin-mood-mixer/internal/sync"
)

const (
	recentMixes     = 20
	defaultMixLimit = 50
	maxMixLimit     = 500
)

// MixService generates and manages mixes. *mixes.Service implements it.
type MixService interface {
	Generate(ctx context.Context, req mixes.GenerateRequest) (*mixes.Detail, error)
	Get(ctx context.Context, id string) (*mixes.Detail, error)
	List(ctx context.Context, limit int) ([]db.Mix, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, id, target string) (*db.Mix, error)
	Groups(ctx context.Context, source string, cfg clustering.Config) (*mixes.GroupsResult, error)
}

// SyncService refreshes catalogs. *sync.Service implements it.
type SyncService interface {
	SyncLibrary(ctx context.Context, source string, force bool) (*catalogsync.SyncResult, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	mixes     MixService
	syncer    SyncService
	health    HealthChecker
	templates *Templates
	log       zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(mixSvc MixService, syncer SyncService, health HealthChecker, templates *Templates, log zerolog.Logger) *Handlers {
	return &Handlers{
		mixes:     mixSvc,
		syncer:    syncer,
		health:    health,
		templates: templates,
		log:       log,
	}
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.renderHome(w, r, http.StatusOK, MixForm{Source: db.SourceJellyfin, MoodMode: mixes.ModeFilter}, nil)
}

func (h *Handlers) renderHome(w http.ResponseWriter, r *http.Request, status int, form MixForm, flash *FlashMessage) {
	recent, err := h.mixes.List(r.Context(), recentMixes)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := HomePageData{
		PageData: PageData{
			Title:       "Mixes",
			CurrentPath: r.URL.Path,
			Flash:       flash,
		},
		Moods: moodData(),
		Mixes: recent,
		Form:  form,
	}
	h.render(w, status, "home", data)
}

// CreateMixForm handles the home page form (POST /mixes).
func (h *Handlers) CreateMixForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, errBadRequest("invalid form"))
		return
	}

	form := MixForm{
		Source:        r.PostForm.Get("source"),
		Mood:          r.PostForm.Get("mood"),
		MoodMode:      r.PostForm.Get("mood_mode"),
		SeedID:        r.PostForm.Get("seed_id"),
		TargetMinutes: r.PostForm.Get("target_minutes"),
		Limit:         r.PostForm.Get("limit"),
	}

	req := mixes.GenerateRequest{
		Source:   form.Source,
		Mood:     form.Mood,
		MoodMode: form.MoodMode,
		SeedID:   form.SeedID,
	}
	var err error
	if req.TargetMinutes, err = parseFloat(form.TargetMinutes); err != nil {
		h.renderHome(w, r, http.StatusBadRequest, form, &FlashMessage{Type: "error", Message: "target minutes must be a number"})
		return
	}
	if req.Limit, err = parseInt(form.Limit); err != nil {
		h.renderHome(w, r, http.StatusBadRequest, form, &FlashMessage{Type: "error", Message: "max items must be a whole number"})
		return
	}

	detail, err := h.mixes.Generate(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.renderError(w, r, err)
			return
		}
		h.renderHome(w, r, status, form, &FlashMessage{Type: "error", Message: err.Error()})
		return
	}

	http.Redirect(w, r, "/mixes/"+detail.Mix.ID.String(), http.StatusSeeOther)
}

// MixPage shows a single mix (GET /mixes/{id}).
func (h *Handlers) MixPage(w http.ResponseWriter, r *http.Request) {
	detail, err := h.mixes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := MixPageData{
		PageData: PageData{
			Title:       detail.Mix.Name,
			CurrentPath: r.URL.Path,
		},
		Mix:      detail.Mix,
		Items:    detail.Items,
		Duration: detail.Duration(),
	}
	h.render(w, http.StatusOK, "mix", data)
}

// ListMoods returns the mood table (GET /api/moods).
func (h *Handlers) ListMoods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toMoodsJSON())
}

// ListMixes returns recent mixes (GET /api/mixes?limit=).
func (h *Handlers) ListMixes(w http.ResponseWriter, r *http.Request) {
	limit := defaultMixLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxMixLimit {
			h.writeError(w, r, errBadRequest("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	list, err := h.mixes.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]mixJSON, len(list))
	for i, m := range list {
		out[i] = toMixJSON(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateMix generates a mix (POST /api/mixes).
func (h *Handlers) CreateMix(w http.ResponseWriter, r *http.Request) {
	var req mixes.GenerateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	detail, err := h.mixes.Generate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/mixes/"+detail.Mix.ID.String())
	writeJSON(w, http.StatusCreated, toDetailJSON(*detail))
}

// GetMix returns a mix with its entries (GET /api/mixes/{id}).
func (h *Handlers) GetMix(w http.ResponseWriter, r *http.Request) {
	detail, err := h.mixes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailJSON(*detail))
}

// DeleteMix removes a mix (DELETE /api/mixes/{id}).
func (h *Handlers) DeleteMix(w http.ResponseWriter, r *http.Request) {
	if err := h.mixes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportMix pushes a mix to a remote playlist (POST /api/mixes/{id}/export).
func (h *Handlers) ExportMix(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	mix, err := h.mixes.Export(r.Context(), chi.URLParam(r, "id"), req.Target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMixJSON(*mix))
}

// Groups clusters a catalog by genre (GET /api/groups?source=&clusters=&min_size=).
func (h *Handlers) Groups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := clustering.DefaultConfig()

	if v := q.Get("clusters"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 20 {
			h.writeError(w, r, errBadRequest("clusters must be between 1 and 20"))
			return
		}
		cfg.NumClusters = n
	}
	if v := q.Get("min_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, r, errBadRequest("min_size must be a positive integer"))
			return
		}
		cfg.MinGroupSize = n
	}

	source := q.Get("source")
	if source != "" && source != db.SourceJellyfin && source != db.SourceSpotify {
		h.writeError(w, r, errBadRequest("source must be jellyfin or spotify"))
		return
	}

	res, err := h.mixes.Groups(r.Context(), source, cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupsJSON(*res))
}

// Sync refreshes a catalog (POST /api/sync).
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Source == "" {
		req.Source = db.SourceJellyfin
	}

	result, err := h.syncer.SyncLibrary(r.Context(), req.Source, req.Force)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Health reports database reachability (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// render writes a page. A template failure becomes a plain 500.
func (h *Handlers) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, page, data); err != nil {
		h.log.Error().Err(err).Str("page", page).Msg("failed to render template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the error page with the status mapped from err.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "Something went wrong."
	}

	h.render(w, status, "error", ErrorPageData{
		PageData: PageData{Title: http.StatusText(status), CurrentPath: r.URL.Path},
		Status:   status,
		Message:  msg,
	})
}

// writeError writes err as a JSON error body.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var bad badRequestError
	switch {
	case errors.As(err, &bad),
		errors.Is(err, mixes.ErrInvalidRequest),
		errors.Is(err, mixes.ErrInvalidMixID),
		errors.Is(err, mixes.ErrUnknownTarget),
		errors.Is(err, mixes.ErrTargetMismatch),
		errors.Is(err, catalogsync.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, mixes.ErrMixNotFound),
		errors.Is(err, mixes.ErrSeedNotFound):
		return http.StatusNotFound
	case errors.Is(err, mixes.ErrAlreadyExported),
		errors.Is(err, catalogsync.ErrSyncTooRecent):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
