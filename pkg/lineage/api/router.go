package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// NewRouter mounts the file and document handlers under /files and /documents.
// Either service may be nil, in which case its subtree is not served.
func NewRouter(files, documents lineage.Service, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	if files != nil {
		r.Mount("/files", NewItemHandler(files, log).Routes())
	}
	if documents != nil {
		r.Mount("/documents", NewItemHandler(documents, log).Routes())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	return r
}
