package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-lineage/pkg/lineage"
	"github.com/tendant/content-lineage/pkg/lineage/directory"
	"github.com/tendant/content-lineage/pkg/lineage/repo/memory"
	memorystorage "github.com/tendant/content-lineage/pkg/lineage/storage/memory"
)

type testEnv struct {
	router    chi.Router
	files     lineage.Service
	documents lineage.Service
	blobs     *memorystorage.Backend
	projectID uuid.UUID
	user      lineage.User
}

// setupTest wires both services over in-memory stores with one project and one user
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		blobs:     memorystorage.New(),
		projectID: uuid.New(),
		user:      lineage.User{ID: uuid.New(), Email: "ada@example.com"},
	}
	dir := directory.New()
	dir.AddProject(lineage.Project{ID: env.projectID, Name: "Docs"})
	dir.AddUser(env.user)

	repo := memory.New()
	common := []lineage.Option{
		lineage.WithRepository(repo),
		lineage.WithProjects(dir),
		lineage.WithUsers(dir),
	}

	var err error
	env.files, err = lineage.New(append(common, lineage.WithBackend(lineage.NewBlobBackend("memory", env.blobs)))...)
	require.NoError(t, err)
	env.documents, err = lineage.New(append(common, lineage.WithBackend(lineage.NewInlineBackend()))...)
	require.NoError(t, err)

	env.router = NewRouter(env.files, env.documents, zerolog.Nop())
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, method, target, fileName, mimeType, content string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) createFile(t *testing.T, name, content string) ItemResponse {
	t.Helper()
	w := e.do(t, multipartRequest(t, http.MethodPost, "/files/projects/"+e.projectID.String()+"/items", name, "text/plain", content, nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ItemResponse](t, w)
}

func TestFiles_CreateUpdateRestore(t *testing.T) {
	env := setupTest(t)

	item := env.createFile(t, "report.txt", "A")
	assert.Equal(t, "report.txt", item.Name)
	assert.Equal(t, "file", item.Kind)
	assert.EqualValues(t, 1, item.SizeBytes)

	req := multipartRequest(t, http.MethodPut, "/files/items/"+item.ID, "report.txt", "text/plain", "BB", map[string]string{"change_note": "second draft"})
	req.Header.Set(ActorHeader, "ada@example.com")
	w := env.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[ItemResponse](t, w)
	assert.EqualValues(t, 2, updated.SizeBytes)
	assert.Equal(t, env.user.ID.String(), updated.UpdatedBy)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/files/items/"+item.ID+"/versions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	versions := decode[[]VersionResponse](t, w)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, "ada@example.com", versions[0].Author)
	assert.Equal(t, "second draft", versions[0].ChangeNote)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/files/items/"+item.ID+"/versions/1/content", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", w.Body.String())

	w = env.do(t, httptest.NewRequest(http.MethodPost, "/files/items/"+item.ID+"/restore/1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/files/items/"+item.ID+"/content", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report.txt")

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/files/items/"+item.ID+"/versions", nil))
	versions = decode[[]VersionResponse](t, w)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)
	assert.Equal(t, "Restored from version 1", versions[0].ChangeNote)
	assert.Equal(t, lineage.AuthorSystem, versions[0].Author)
}

func TestFiles_ListAndDelete(t *testing.T) {
	env := setupTest(t)

	first := env.createFile(t, "a.txt", "one")
	env.createFile(t, "b.txt", "two")

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/files/projects/"+env.projectID.String()+"/items", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ItemResponse](t, w), 2)

	w = env.do(t, httptest.NewRequest(http.MethodDelete, "/files/items/"+first.ID, nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/files/items/"+first.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Error.Code)

	assert.Len(t, env.blobs.Keys(), 1)
}

func TestFiles_CreateValidation(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name: "invalid project id",
			req: func() *http.Request {
				return multipartRequest(t, http.MethodPost, "/files/projects/not-a-uuid/items", "a.txt", "text/plain", "x", nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "missing file part",
			req: func() *http.Request {
				return jsonRequest(t, http.MethodPost, "/files/projects/"+env.projectID.String()+"/items", map[string]string{"name": "a.txt"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "name without extension",
			req: func() *http.Request {
				return multipartRequest(t, http.MethodPost, "/files/projects/"+env.projectID.String()+"/items", "README", "text/plain", "x", nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "unknown project",
			req: func() *http.Request {
				return multipartRequest(t, http.MethodPost, "/files/projects/"+uuid.NewString()+"/items", "a.txt", "text/plain", "x", nil)
			},
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.req())
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestFiles_UnknownActorIsRecordedAsSystem(t *testing.T) {
	env := setupTest(t)
	item := env.createFile(t, "a.txt", "one")

	req := multipartRequest(t, http.MethodPut, "/files/items/"+item.ID, "a.txt", "text/plain", "two", nil)
	req.Header.Set(ActorHeader, "nobody@example.com")
	w := env.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[ItemResponse](t, w).UpdatedBy)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/files/items/"+item.ID+"/versions", nil))
	versions := decode[[]VersionResponse](t, w)
	require.Len(t, versions, 1)
	assert.Equal(t, lineage.AuthorSystem, versions[0].Author)
}

func TestFiles_RestoreMissingVersion(t *testing.T) {
	env := setupTest(t)
	item := env.createFile(t, "a.txt", "one")

	w := env.do(t, httptest.NewRequest(http.MethodPost, "/files/items/"+item.ID+"/restore/7", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodPost, "/files/items/"+item.ID+"/restore/0", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodPost, "/files/items/"+item.ID+"/restore/zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFiles_MissingContentIsBadGateway(t *testing.T) {
	env := setupTest(t)
	created := env.createFile(t, "a.txt", "one")

	item, err := env.files.Get(context.Background(), uuid.MustParse(created.ID))
	require.NoError(t, err)
	require.NoError(t, env.blobs.Delete(context.Background(), item.ContentRef))

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/files/items/"+created.ID+"/content", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "content_unavailable", decode[ErrorResponse](t, w).Error.Code)
}

func TestDocuments_Lifecycle(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, jsonRequest(t, http.MethodPost, "/documents/projects/"+env.projectID.String()+"/items", DocumentRequest{}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[ItemResponse](t, w)
	assert.Equal(t, lineage.DefaultDocumentTitle, doc.Name)
	assert.EqualValues(t, 0, doc.SizeBytes)

	content := "Hello v1"
	w = env.do(t, jsonRequest(t, http.MethodPut, "/documents/items/"+doc.ID, DocumentRequest{Content: &content}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The empty document is not worth preserving.
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/documents/items/"+doc.ID+"/versions", nil))
	assert.Empty(t, decode[[]VersionResponse](t, w))

	content = "Hello v2"
	w = env.do(t, jsonRequest(t, http.MethodPut, "/documents/items/"+doc.ID, DocumentRequest{Name: "Greeting", Content: &content}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Greeting", decode[ItemResponse](t, w).Name)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/documents/items/"+doc.ID+"/versions", nil))
	versions := decode[[]VersionResponse](t, w)
	require.Len(t, versions, 1)
	assert.Equal(t, lineage.DefaultChangeNote, versions[0].ChangeNote)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/documents/items/"+doc.ID+"/versions/1/content", nil))
	assert.Equal(t, "Hello v1", w.Body.String())

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/documents/items/"+doc.ID+"/content", nil))
	assert.Equal(t, "Hello v2", w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestKindsAreIsolated(t *testing.T) {
	env := setupTest(t)
	file := env.createFile(t, "a.txt", "one")

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/documents/items/"+file.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/documents/projects/"+env.projectID.String()+"/items", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]ItemResponse](t, w))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&lineage.ItemError{Op: "get", Err: lineage.ErrItemNotFound}, http.StatusNotFound},
		{lineage.ErrVersionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: name", lineage.ErrInvalidInput), http.StatusBadRequest},
		{lineage.ErrConflictingVersionWrite, http.StatusConflict},
		{&lineage.StorageError{Backend: "s3", Op: "fetch", Err: io.ErrUnexpectedEOF}, http.StatusBadGateway},
		{io.EOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/files/items", nil))

	line := buf.String()
	assert.True(t, strings.Contains(line, `"status":418`), line)
	assert.Contains(t, line, `"path":"/files/items"`)
}
