package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/almanac/internal/service"
)

// Handler holds API route handlers.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// periodName extracts the {name} URL parameter. Encoded slashes are accepted
// so clients may pass full vault paths.
func periodName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ResolvePeriod handles GET /api/v1/periods/{name}.
//
//	@Summary		Resolve a periodic note name to its period, date range and related notes
//	@Tags			periods
//	@Produce		json
//	@Param			name	path		string	true	"File name such as 2024-W10.md"
//	@Success		200		{object}	PeriodResponse
//	@Security		BearerAuth
//	@Router			/periods/{name} [get]
func (h *Handler) ResolvePeriod(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ResolvePeriod(periodName(r)))
}

// PeriodTasks handles GET /api/v1/periods/{name}/tasks.
//
//	@Summary		List checkbox items of the daily notes inside a period
//	@Tags			periods
//	@Produce		json
//	@Param			name	path		string	true	"File name such as 2024-03.md"
//	@Success		200		{object}	TaskListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/periods/{name}/tasks [get]
func (h *Handler) PeriodTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.Tasks(r.Context(), periodName(r))
	if err != nil {
		writeError(w, "period tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks})
}

// PeriodLinks handles GET /api/v1/periods/{name}/links.
//
//	@Summary		List links under a header in the daily notes inside a period
//	@Tags			periods
//	@Produce		json
//	@Param			name	path		string	true	"File name such as 2024-Q1.md"
//	@Param			header	query		string	true	"Markdown header, e.g. ## Projects"
//	@Success		200		{object}	LinkListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/periods/{name}/links [get]
func (h *Handler) PeriodLinks(w http.ResponseWriter, r *http.Request) {
	header := r.URL.Query().Get("header")
	if header == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'header' is required"))
		return
	}
	links, err := h.svc.SectionLinks(r.Context(), periodName(r), header)
	if err != nil {
		writeError(w, "period links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinkListResponse{Links: links})
}

// PeriodBacklinks handles GET /api/v1/periods/{name}/backlinks.
//
//	@Summary		List notes linking to a periodic note
//	@Tags			periods
//	@Produce		json
//	@Param			name	path		string	true	"File name such as 2024-W10.md"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/periods/{name}/backlinks [get]
func (h *Handler) PeriodBacklinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.Backlinks(periodName(r))
	if err != nil {
		writeError(w, "period backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: links})
}

// CreatePeriodic handles POST /api/v1/periodic.
//
//	@Summary		Create a periodic note
//	@Tags			periodic
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePeriodicRequest	true	"Kind and date (empty for today)"
//	@Success		201		{object}	PeriodicNoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/periodic [post]
func (h *Handler) CreatePeriodic(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodicRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Kind == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("kind is required"))
		return
	}
	note, err := h.svc.CreatePeriodic(r.Context(), req.Kind, req.Date)
	if err != nil {
		writeError(w, "create periodic note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// ListPara handles GET /api/v1/para/{category}.
//
//	@Summary		List the items of a PARA category
//	@Tags			para
//	@Produce		json
//	@Param			category	path		string	true	"projects, areas, resources or archives"
//	@Success		200			{object}	ParaListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/para/{category} [get]
func (h *Handler) ListPara(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPARA(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, "list para", err)
		return
	}
	writeJSON(w, http.StatusOK, ParaListResponse{Items: items})
}

// CreatePara handles POST /api/v1/para.
//
//	@Summary		Add an item to a PARA category
//	@Tags			para
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateParaRequest	true	"Item to create"
//	@Success		201		{object}	ParaItemResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/para [post]
func (h *Handler) CreatePara(w http.ResponseWriter, r *http.Request) {
	var req CreateParaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Category == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("category and name are required"))
		return
	}
	p, err := h.svc.CreatePARA(req.Category, req.Name, req.Tag)
	if err != nil {
		writeError(w, "create para", err)
		return
	}
	writeJSON(w, http.StatusCreated, ParaItemResponse{Path: p})
}

// ArchivePara handles POST /api/v1/para/archive.
//
//	@Summary		Move a PARA item into the archives
//	@Tags			para
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ArchiveParaRequest	true	"Item folder or index note"
//	@Success		200		{object}	ArchiveParaResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/para/archive [post]
func (h *Handler) ArchivePara(w http.ResponseWriter, r *http.Request) {
	var req ArchiveParaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	dest, err := h.svc.ArchivePARA(req.Path)
	if err != nil {
		writeError(w, "archive para", err)
		return
	}
	writeJSON(w, http.StatusOK, ArchiveParaResponse{Path: dest})
}

// SyncDailyRecords handles POST /api/v1/daily-record/sync.
//
//	@Summary		Run a daily-record sync pass
//	@Tags			daily-record
//	@Produce		json
//	@Param			force	query		bool	false	"Ignore the last-sync checkpoint"
//	@Success		200		{object}	SyncReport
//	@Failure		409		{object}	errResponse
//	@Failure		412		{object}	errResponse
//	@Failure		502		{object}	SyncReport
//	@Security		BearerAuth
//	@Router			/daily-record/sync [post]
func (h *Handler) SyncDailyRecords(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	rep, err := h.svc.SyncDailyRecords(r.Context(), force)
	if err != nil {
		if rep.StartedAt.IsZero() {
			writeError(w, "daily record sync", err)
			return
		}
		writeJSON(w, http.StatusBadGateway, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// SyncStatus handles GET /api/v1/daily-record/status.
//
//	@Summary		Current daily-record sync state and last report
//	@Tags			daily-record
//	@Produce		json
//	@Success		200	{object}	SyncStatus
//	@Failure		412	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/daily-record/status [get]
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.SyncStatus()
	if err != nil {
		writeError(w, "daily record status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ResetCheckpoint handles DELETE /api/v1/daily-record/checkpoint.
//
//	@Summary		Forget the last-sync time so the next pass fetches everything
//	@Tags			daily-record
//	@Success		204	"Checkpoint reset"
//	@Failure		412	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/daily-record/checkpoint [delete]
func (h *Handler) ResetCheckpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetSyncCheckpoint(); err != nil {
		writeError(w, "reset checkpoint", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
