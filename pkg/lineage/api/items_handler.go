package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// MaxUploadMemory is the part of a multipart upload kept in memory; the rest spills to disk
const MaxUploadMemory = 32 << 20

// ItemHandler serves one lineage service, either files or documents
type ItemHandler struct {
	service lineage.Service
	log     zerolog.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(service lineage.Service, log zerolog.Logger) *ItemHandler {
	return &ItemHandler{
		service: service,
		log:     log.With().Str("component", "api").Str("kind", string(service.Kind())).Logger(),
	}
}

// Routes returns the routes for items
func (h *ItemHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/projects/{projectID}/items", h.CreateItem)
	r.Get("/projects/{projectID}/items", h.ListItems)

	r.Get("/items/{itemID}", h.GetItem)
	r.Put("/items/{itemID}", h.UpdateItem)
	r.Delete("/items/{itemID}", h.DeleteItem)
	r.Get("/items/{itemID}/content", h.GetContent)

	// Lineage
	r.Get("/items/{itemID}/versions", h.ListVersions)
	r.Get("/items/{itemID}/versions/{versionNumber}/content", h.GetVersionContent)
	r.Post("/items/{itemID}/restore/{versionNumber}", h.RestoreVersion)

	return r
}

// ItemResponse is the response body for an item
type ItemResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionResponse is one entry of an item's history
type VersionResponse struct {
	VersionNumber int       `json:"version_number"`
	Name          string    `json:"name"`
	MimeType      string    `json:"mime_type,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	Author        string    `json:"author"`
	ChangeNote    string    `json:"change_note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentRequest is the JSON body for creating or updating a document
type DocumentRequest struct {
	Name       string  `json:"name"`
	Content    *string `json:"content"`
	ChangeNote string  `json:"change_note,omitempty"`
}

func toItemResponse(item *lineage.Item) ItemResponse {
	resp := ItemResponse{
		ID:        item.ID.String(),
		Kind:      string(item.Kind),
		ProjectID: item.ProjectID.String(),
		Name:      item.Name,
		MimeType:  item.MimeType,
		SizeBytes: item.SizeBytes,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.UpdatedBy != nil {
		resp.UpdatedBy = item.UpdatedBy.String()
	}
	return resp
}

// upload is the content part of a create or update request
type upload struct {
	name       string
	mimeType   string
	content    io.Reader
	changeNote string
	closer     io.Closer
}

func (u *upload) Close() {
	if u.closer != nil {
		u.closer.Close()
	}
}

// readUpload reads multipart for files and JSON for documents
func (h *ItemHandler) readUpload(r *http.Request, contentRequired bool) (*upload, error) {
	if h.service.Kind() == lineage.KindDocument {
		var req DocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		u := &upload{name: req.Name, mimeType: "text/plain", changeNote: req.ChangeNote}
		switch {
		case req.Content != nil:
			u.content = strings.NewReader(*req.Content)
		case contentRequired:
			u.content = strings.NewReader("")
		}
		return u, nil
	}

	if err := r.ParseMultipartForm(MaxUploadMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file part is required: %w", err)
	}
	return &upload{
		name:       firstNonEmpty(r.FormValue("name"), header.Filename),
		mimeType:   firstNonEmpty(r.FormValue("mime_type"), partType(header)),
		content:    file,
		changeNote: r.FormValue("change_note"),
		closer:     file,
	}, nil
}

func partType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CreateItem creates a new file or document in a project
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		badRequest(w, r, "Invalid project ID")
		return
	}

	u, err := h.readUpload(r, false)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	defer u.Close()

	item, err := h.service.Create(r.Context(), lineage.CreateRequest{
		ProjectID: projectID,
		Name:      u.name,
		MimeType:  u.mimeType,
		Content:   u.content,
		Author:    actor(r),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.Info().Str("item_id", item.ID.String()).Msg("item created")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toItemResponse(item))
}

// ListItems lists a project's items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		badRequest(w, r, "Invalid project ID")
		return
	}

	items, err := h.service.List(r.Context(), projectID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	render.JSON(w, r, resp)
}

// GetItem returns an item's current state
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, toItemResponse(item))
}

// UpdateItem replaces an item's content, preserving the previous content as a version
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	u, err := h.readUpload(r, true)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	defer u.Close()

	item, err := h.service.Update(r.Context(), lineage.UpdateRequest{
		ItemID:     id,
		Name:       u.name,
		MimeType:   u.mimeType,
		Content:    u.content,
		Author:     actor(r),
		ChangeNote: u.changeNote,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, toItemResponse(item))
}

// DeleteItem removes an item with all of its versions
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetContent streams an item's current content
func (h *ItemHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	rc, item, err := h.service.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer rc.Close()

	h.stream(w, rc, item.Name, item.MimeType, item.SizeBytes)
}

// ListVersions returns an item's history, newest first
func (h *ItemHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := make([]VersionResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, VersionResponse{
			VersionNumber: e.VersionNumber,
			Name:          e.Name,
			MimeType:      e.MimeType,
			SizeBytes:     e.SizeBytes,
			Author:        e.Author,
			ChangeNote:    e.ChangeNote,
			CreatedAt:     e.CreatedAt,
		})
	}
	render.JSON(w, r, resp)
}

// GetVersionContent streams the content preserved by one version
func (h *ItemHandler) GetVersionContent(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	n, ok := versionNumber(w, r)
	if !ok {
		return
	}

	rc, v, err := h.service.OpenVersion(r.Context(), id, n)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer rc.Close()

	h.stream(w, rc, v.Name, v.MimeType, v.SizeBytes)
}

// RestoreVersion makes a historical version current again
func (h *ItemHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	n, ok := versionNumber(w, r)
	if !ok {
		return
	}

	item, err := h.service.Restore(r.Context(), lineage.RestoreRequest{
		ItemID:        id,
		VersionNumber: n,
		Author:        actor(r),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.Info().Str("item_id", id.String()).Int("version_number", n).Msg("item restored")
	render.JSON(w, r, toItemResponse(item))
}

func (h *ItemHandler) stream(w http.ResponseWriter, rc io.Reader, name, mimeType string, size int64) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if h.service.Kind() == lineage.KindFile {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn().Err(err).Msg("content stream interrupted")
	}
}

func itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		badRequest(w, r, "Invalid item ID")
		return uuid.Nil, false
	}
	return id, true
}

func versionNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "versionNumber"))
	if err != nil {
		badRequest(w, r, "Invalid version number")
		return 0, false
	}
	return n, true
}
