package router_test

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/router"
)

// stubHandlers 记录命中的处理器名.
type stubHandlers struct{}

func reply(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, name+":"+c.Param("id")+c.Param("filename"))
	}
}

func (stubHandlers) Upload(c *gin.Context)      { reply("upload")(c) }
func (stubHandlers) ListUploads(c *gin.Context) { reply("list")(c) }
func (stubHandlers) Download(c *gin.Context)    { reply("download")(c) }
func (stubHandlers) GetUpload(c *gin.Context)   { reply("get")(c) }
func (stubHandlers) ListRecords(c *gin.Context) { reply("records")(c) }

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	router.RegisterRootRoute(&r.RouterGroup)
	router.RegisterUploadRoutes(&r.RouterGroup, stubHandlers{})
	router.RegisterSwaggerRoute(r, configs.ServerConfig{Debug: false})

	return r
}

func TestUploadRoutes(t *testing.T) {
	r := newEngine()

	cases := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/upload", "upload:"},
		{http.MethodPost, "/upload/", "upload:"},
		{http.MethodGet, "/upload/download/a.csv", "download:a.csv"},
		{http.MethodGet, "/upload/7", "get:7"},
		{http.MethodGet, "/upload/7/records", "records:7"},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

		require.Equal(t, http.StatusOK, w.Code, tc.path)
		assert.Equal(t, tc.want, w.Body.String(), tc.path)
	}
}

func TestListIsGzipped(t *testing.T) {
	r := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/upload/list", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)

	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "list:", string(body))
}

func TestSwaggerDisabledOutsideDebug(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulerRoutesRegistered(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	router.RegisterSchedulerRoutes(&r.RouterGroup)

	// 未注入调度器时所有路由都命中处理器并返回 503
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/scheduler/jobs"},
		{http.MethodGet, "/scheduler/jobs/reconcile.pending"},
		{http.MethodPost, "/scheduler/jobs/reconcile.pending/run"},
		{http.MethodDelete, "/scheduler/jobs/reconcile.pending"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code, tc.path)
	}
}
