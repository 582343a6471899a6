package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/index"
	"github.com/babarot/stowage/internal/lock"
	"github.com/babarot/stowage/internal/storage"
	"github.com/babarot/stowage/internal/store/jsonfile"
	"github.com/babarot/stowage/internal/trash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	backend, err := jsonfile.Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	idx, err := index.Open(backend)
	require.NoError(t, err)

	locks := lock.New()
	svc, err := storage.NewService(filepath.Join(dir, "live"), idx, locks, storage.WithMaxUploadSize(opts.MaxUploadSize))
	require.NoError(t, err)
	tm, err := trash.NewManager(trash.Config{
		StorageRoot:      svc.Root(),
		TrashRoot:        filepath.Join(dir, "trash"),
		Retention:        30 * 24 * time.Hour,
		AllowCrossDevice: true,
	}, idx, trash.WithLocker(locks))
	require.NoError(t, err)

	ts := httptest.NewServer(New(svc, tm, idx, opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func uploadFile(t *testing.T, base string, folderID types.ID, name, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if !folderID.IsZero() {
		require.NoError(t, mw.WriteField("folder_id", folderID.String()))
	}
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(base+"/files/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createFolder(t *testing.T, base string, parent types.ID, name string) storage.Folder {
	t.Helper()
	resp := do(t, http.MethodPost, base+"/folders", map[string]any{"name": name, "parent_id": parent})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[storage.Folder](t, resp)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Options{})
	resp := do(t, http.MethodGet, ts.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "json", body["backend"])
}

func TestUploadTrashRestoreFile(t *testing.T) {
	ts := newTestServer(t, Options{})
	docs := createFolder(t, ts.URL, "", "docs")

	resp := uploadFile(t, ts.URL, docs.ID, "report.pdf", "%PDF-1.4 fake")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	file := decode[storage.File](t, resp)
	assert.Equal(t, "docs/report.pdf", file.Path)

	resp = do(t, http.MethodDelete, ts.URL+"/files/"+file.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decode[trashItem](t, resp)
	assert.Equal(t, file.ID, entry.OriginalID)
	require.NotNil(t, entry.DaysUntilDeletion)
	assert.Equal(t, 29, *entry.DaysUntilDeletion)

	resp = do(t, http.MethodGet, ts.URL+"/files/"+file.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/trash/"+entry.ID.String()+"/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	restored := decode[trash.Restored](t, resp)
	assert.Equal(t, "docs/report.pdf", restored.Path)

	resp = do(t, http.MethodGet, ts.URL+"/files/"+file.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "report.pdf")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestTrashRestoreFolder(t *testing.T) {
	ts := newTestServer(t, Options{})
	projects := createFolder(t, ts.URL, "", "projects")
	sub := createFolder(t, ts.URL, projects.ID, "alpha")
	resp := uploadFile(t, ts.URL, sub.ID, "notes.txt", "n")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	file := decode[storage.File](t, resp)

	resp = do(t, http.MethodDelete, ts.URL+"/folders/"+projects.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decode[trashItem](t, resp)
	assert.Equal(t, types.ItemFolder, entry.Type)
	assert.Len(t, entry.Descendants, 2)

	resp = do(t, http.MethodGet, ts.URL+"/folders/"+sub.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/trash/"+entry.ID.String()+"/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/folders/"+sub.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "projects/alpha", decode[storage.Folder](t, resp).Path)

	resp = do(t, http.MethodGet, ts.URL+"/files?folder_id="+sub.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files := decode[[]storage.File](t, resp)
	require.Len(t, files, 1)
	assert.Equal(t, file.ID, files[0].ID)
}

func TestEmptyTrash(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		resp := uploadFile(t, ts.URL, "", name, name)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		f := decode[storage.File](t, resp)
		require.Equal(t, http.StatusOK, do(t, http.MethodDelete, ts.URL+"/files/"+f.ID.String(), nil).StatusCode)
	}
	for _, name := range []string{"x", "y"} {
		f := createFolder(t, ts.URL, "", name)
		require.Equal(t, http.StatusOK, do(t, http.MethodDelete, ts.URL+"/folders/"+f.ID.String(), nil).StatusCode)
	}

	resp := do(t, http.MethodGet, ts.URL+"/trash?type=folder", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]trashItem](t, resp), 2)

	resp = do(t, http.MethodDelete, ts.URL+"/trash/empty", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[trash.Report](t, resp)
	assert.Equal(t, 5, report.Purged)
	assert.Zero(t, report.Failed)

	resp = do(t, http.MethodGet, ts.URL+"/trash", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]trashItem](t, resp))
}

func TestPurgeTrash(t *testing.T) {
	ts := newTestServer(t, Options{})
	resp := uploadFile(t, ts.URL, "", "a.txt", "a")
	f := decode[storage.File](t, resp)
	entry := decode[trashItem](t, do(t, http.MethodDelete, ts.URL+"/files/"+f.ID.String(), nil))

	resp = do(t, http.MethodDelete, ts.URL+"/trash/"+entry.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "purged", decode[map[string]any](t, resp)["status"])

	resp = do(t, http.MethodGet, ts.URL+"/trash/"+entry.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProblemDocuments(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp := do(t, http.MethodGet, ts.URL+"/files/"+types.NewID().String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	p := decode[problem](t, resp)
	assert.Equal(t, "not_found", p.Kind)
	assert.Equal(t, http.StatusNotFound, p.Status)
	assert.NotEmpty(t, p.RequestID)

	resp = do(t, http.MethodGet, ts.URL+"/files/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = uploadFile(t, ts.URL, "", "dup.txt", "1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = uploadFile(t, ts.URL, "", "dup.txt", "2")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", decode[problem](t, resp).Kind)

	resp = do(t, http.MethodPost, ts.URL+"/folders", map[string]any{"name": "x", "color": "red"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/trash?type=socket", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadFolderFieldAfterFile(t *testing.T) {
	ts := newTestServer(t, Options{})
	docs := createFolder(t, ts.URL, "", "docs")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "late.txt")
	require.NoError(t, err)
	_, err = io.WriteString(part, "content")
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("folder_id", docs.ID.String()))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/files/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	file := decode[storage.File](t, resp)
	assert.Equal(t, "docs/late.txt", file.Path)
	assert.Equal(t, docs.ID, file.FolderID)

	resp = do(t, http.MethodGet, ts.URL+"/files?folder_id="+docs.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files := decode[[]storage.File](t, resp)
	require.Len(t, files, 1)
	assert.Equal(t, file.ID, files[0].ID)
}

func TestUploadMissingFilePart(t *testing.T) {
	ts := newTestServer(t, Options{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "x"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/files/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, Options{MaxUploadSize: 8})
	resp := uploadFile(t, ts.URL, "", "big.bin", strings.Repeat("x", 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
