package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// AttachmentHandler serves the memo attachments the daily-record sync
// downloaded into the vault.
type AttachmentHandler struct {
	dir string
}

func NewAttachmentHandler(dir string) *AttachmentHandler {
	return &AttachmentHandler{dir: filepath.Clean(dir)}
}

// validAttachmentName accepts the flat "<memo>-<file>" names the sync writes.
func validAttachmentName(name string) bool {
	return name != "" &&
		name == path.Base(name) &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`)
}

// ServeFile handles GET /api/v1/attachments/{filename}.
//
//	@Summary		Download a synced memo attachment
//	@Tags			attachments
//	@Param			filename	path	string	true	"Attachment file name, e.g. 5-photo.png"
//	@Success		200			"File content"
//	@Failure		400			{object}	errResponse
//	@Failure		404			"Not found"
//	@Security		BearerAuth
//	@Router			/attachments/{filename} [get]
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !validAttachmentName(name) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid attachment name"))
		return
	}

	// The folder only appears after the first synced attachment.
	root, err := os.OpenRoot(h.dir)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}
