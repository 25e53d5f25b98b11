package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/almanac/internal/service"
)

// NewRouter creates a chi router with all v1 API routes; mount it at /api/v1.
// authEnabled controls whether Bearer token auth is enforced. attachmentDir is
// the absolute folder that synced memo attachments are stored in.
func NewRouter(svc *service.Service, authEnabled bool, token string, attachmentDir string) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(attachmentDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Period resolution.
	r.Get("/periods/{name}", h.ResolvePeriod)
	r.Get("/periods/{name}/tasks", h.PeriodTasks)
	r.Get("/periods/{name}/links", h.PeriodLinks)
	r.Get("/periods/{name}/backlinks", h.PeriodBacklinks)

	// Periodic notes.
	r.Post("/periodic", h.CreatePeriodic)

	// PARA.
	r.Get("/para/{category}", h.ListPara)
	r.Post("/para", h.CreatePara)
	r.Post("/para/archive", h.ArchivePara)

	// Daily-record sync.
	r.Post("/daily-record/sync", h.SyncDailyRecords)
	r.Get("/daily-record/status", h.SyncStatus)
	r.Delete("/daily-record/checkpoint", h.ResetCheckpoint)

	// Attachments.
	r.Get("/attachments/{filename}", ah.ServeFile)

	return r
}
