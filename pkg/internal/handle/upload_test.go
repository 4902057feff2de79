package handle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/handle"
	"github.com/yeisme/dataviz/pkg/internal/service"
	dbc "github.com/yeisme/dataviz/pkg/internal/storage/db"
	"github.com/yeisme/dataviz/pkg/internal/storage/filestore"
	"github.com/yeisme/dataviz/pkg/internal/storage/records"
	"github.com/yeisme/dataviz/pkg/internal/types"
	"github.com/yeisme/dataviz/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(t *testing.T, maxBytes int64) *gin.Engine {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "handle.db") + "?_pragma=foreign_keys(1)"

	client, err := dbc.Open(ctx, sqlite.Open(dsn), 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, records.Migrate(ctx, client))

	files := filestore.NewLocalWithFs(afero.NewMemMapFs(), "uploads")
	recs := records.New(client, 100)

	catalog := service.NewCatalogService(files, recs)
	ingest := service.NewIngestService(files, recs, configs.IngestConfig{
		MaxUploadBytes: maxBytes,
		StrictColumns:  true,
	}, service.WithCatalog(catalog))

	h := handle.New(ingest, catalog, maxBytes)

	r := gin.New()
	r.Use(middleware.IdentityMiddleware(configs.AuthConfig{UserHeader: "X-User-ID", DefaultUserID: 1}))
	r.GET("/", handle.Root)
	r.POST("/upload", h.Upload)
	r.POST("/upload/", h.Upload)
	r.GET("/upload/list", h.ListUploads)
	r.GET("/upload/download/:filename", h.Download)
	r.GET("/upload/:id", h.GetUpload)
	r.GET("/upload/:id/records", h.ListRecords)

	return r
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	hdr.Set("Content-Type", contentType)

	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, r http.Handler, path, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, ct := multipartBody(t, filename, contentType, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	return w
}

func xlsxFixture(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"Product Name", "Qty", "Price"},
		{"Widget", 3, 9.5},
		{"Gadget", 1, 20},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	return buf.Bytes()
}

func TestRoot(t *testing.T) {
	r := newEngine(t, 0)

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Backend is running successfully"}`, w.Body.String())
}

func TestUploadCSV(t *testing.T) {
	r := newEngine(t, 1<<20)

	w := upload(t, r, "/upload", "people.csv", "text/csv", []byte("Name,Age\nAlice,30\nBob,25\n"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "File 'people.csv' uploaded and processed successfully!", resp.Message)
	assert.Equal(t, 2, resp.TotalRecords)
	assert.NotZero(t, resp.UploadID)
	assert.Contains(t, resp.FilePath, "people.csv")

	w = get(r, fmt.Sprintf("/upload/%d/records?limit=1&offset=1", resp.UploadID))
	require.Equal(t, http.StatusOK, w.Code)

	var page types.RecordPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Bob", page.Records[0].Data["name"])
}

func TestUploadThenListShowsUpload(t *testing.T) {
	r := newEngine(t, 1<<20)

	w := upload(t, r, "/upload", "people.csv", "text/csv", []byte("name,age\nAlice,30\nBob,25\n,"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalRecords)

	w = get(r, "/upload/list")
	require.Equal(t, http.StatusOK, w.Code)

	var items []types.UploadListItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "people.csv", items[0].Filename)
	assert.Equal(t, resp.UploadID, items[0].ID)
	assert.Greater(t, items[0].SizeKB, 0.0)
}

func TestUploadTrailingSlash(t *testing.T) {
	r := newEngine(t, 1<<20)

	w := upload(t, r, "/upload/", "a.csv", "text/csv", []byte("x\n1\n"))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUploadXLSX(t *testing.T) {
	r := newEngine(t, 1<<20)

	w := upload(t, r, "/upload", "products.xlsx", configs.ContentTypeXLSX, xlsxFixture(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalRecords)

	w = get(r, fmt.Sprintf("/upload/%d", resp.UploadID))
	require.Equal(t, http.StatusOK, w.Code)

	var detail types.UploadDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, []string{"product_name", "qty", "price"}, detail.Columns)
	assert.Equal(t, "complete", detail.Status)
}

func TestUploadRejectsMediaType(t *testing.T) {
	r := newEngine(t, 1<<20)

	w := upload(t, r, "/upload", "notes.txt", "text/plain", []byte("hello"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Only CSV or Excel files are allowed"}`, w.Body.String())

	w = get(r, "/upload/download/notes.txt")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadUnreadableContent(t *testing.T) {
	r := newEngine(t, 1<<20)

	content := []byte("not a workbook")

	w := upload(t, r, "/upload", "bad.xlsx", configs.ContentTypeXLSX, content)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "Error reading file: ")

	// 原始文件原样保留在存储中
	w = get(r, "/upload/download/bad.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
}

func TestUploadMissingFileField(t *testing.T) {
	r := newEngine(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadTooLarge(t *testing.T) {
	r := newEngine(t, 16)

	w := upload(t, r, "/upload", "big.csv", "text/csv", bytes.Repeat([]byte("a,b\n"), 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func TestListAndDownload(t *testing.T) {
	r := newEngine(t, 1<<20)

	content := []byte("x\n1\n2\n")
	require.Equal(t, http.StatusOK, upload(t, r, "/upload", "report 2024.csv", "text/csv", content).Code)

	w := get(r, "/upload/list")
	require.Equal(t, http.StatusOK, w.Code)

	var items []types.UploadListItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "report 2024.csv", items[0].Filename)
	assert.Equal(t, "/upload/download/report%202024.csv", items[0].DownloadURL)

	w = get(r, items[0].DownloadURL)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report 2024.csv")
}

func TestDownloadMissing(t *testing.T) {
	r := newEngine(t, 0)

	w := get(r, "/upload/download/nope.csv")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"File not found"}`, w.Body.String())
}

func TestGetUploadNotFound(t *testing.T) {
	r := newEngine(t, 0)

	for _, path := range []string{"/upload/99", "/upload/abc", "/upload/99/records"} {
		w := get(r, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestListRecordsInvalidQuery(t *testing.T) {
	r := newEngine(t, 1<<20)
	require.Equal(t, http.StatusOK, upload(t, r, "/upload", "a.csv", "text/csv", []byte("x\n1\n")).Code)

	w := get(r, "/upload/1/records?limit=5000")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/upload/1/records?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
