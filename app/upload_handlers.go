package huddle

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/huddle-chat/huddle/core"
	"github.com/huddle-chat/huddle/pkg/router"
)

type UploadHandler struct {
	blobs core.BlobStore
}

func NewUploadHandler(blobs core.BlobStore) *UploadHandler {
	return &UploadHandler{blobs: blobs}
}

// UploadHandler accepts a multipart "file" part, stores it and returns the
// attachment descriptor the client embeds in an attachment message.
func (h *UploadHandler) UploadHandler(w http.ResponseWriter, r *http.Request) error {
	file, header, err := r.FormFile("file")
	if err != nil {
		return router.NewJsonError(http.StatusBadRequest, "missing file")
	}
	defer file.Close()

	attachment, err := h.blobs.Put(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, core.ErrBlobTooLarge) {
			return router.NewJsonError(http.StatusRequestEntityTooLarge, err.Error())
		}
		return fmt.Errorf("Put: %w", err)
	}

	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(attachment)
}
