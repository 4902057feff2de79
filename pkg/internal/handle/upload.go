package handle

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/internal/service"
	"github.com/yeisme/dataviz/pkg/internal/types"
	"github.com/yeisme/dataviz/pkg/log"
	"github.com/yeisme/dataviz/pkg/middleware"
	"github.com/yeisme/dataviz/pkg/rule"
)

// Upload 上传并导入一个 CSV/XLSX 文件.
//
//	@Summary		上传表格文件
//	@Description	保存原始文件，解析为表格并把每一行写入数据库. 内容类型取自文件分片的 Content-Type.
//	@Tags			上传
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file							true	"CSV 或 XLSX 文件"
//	@Success		200		{object}	types.UploadResponse			"导入成功"
//	@Failure		400		{object}	types.ErrorResponse				"类型不支持或文件无法解析"
//	@Failure		413		{object}	types.ErrorResponse				"文件过大"
//	@Failure		500		{object}	types.PartialCommitResponse		"上传已记录但数据行写入失败"
//	@Router			/upload [post]
func (h *Handlers) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			abortError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes), err)

			return
		}

		abortError(c, http.StatusBadRequest, "missing multipart field 'file'", err)

		return
	}

	f, err := fh.Open()
	if err != nil {
		abortError(c, http.StatusBadRequest, fmt.Sprintf("Error reading file: %v", err), err)

		return
	}
	defer f.Close()

	userID, _ := middleware.GetUserID(c)

	res, err := h.ingest.Ingest(c.Request.Context(), service.IngestRequest{
		UserID:      userID,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		h.uploadError(c, err)

		return
	}

	c.JSON(http.StatusOK, types.UploadResponse{
		Message:      fmt.Sprintf("File '%s' uploaded and processed successfully!", res.Filename),
		TotalRecords: res.RecordCount,
		UploadID:     res.UploadID,
		FilePath:     res.FilePath,
	})
}

func (h *Handlers) uploadError(c *gin.Context, err error) {
	var (
		ce *service.ContentError
		pe *service.PartialCommitError
	)

	switch {
	case errors.Is(err, service.ErrUnsupportedMediaType):
		abortError(c, http.StatusBadRequest, msgUnsupportedMedia, err)
	case errors.As(err, &ce):
		abortError(c, http.StatusBadRequest, "Error reading file: "+ce.Reason(), err)
	case errors.As(err, &pe):
		log.Logger().Error().Err(err).Uint("upload_id", pe.UploadID).Msg("upload partially committed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, types.PartialCommitResponse{
			Error:    pe.Error(),
			UploadID: pe.UploadID,
		})
	default:
		abortError(c, statusFor(err), err.Error(), err)
	}
}

// ListUploads 列出原始文件仍存在的上传.
//
//	@Summary	上传列表
//	@Tags		上传
//	@Produce	json
//	@Success	200	{array}		types.UploadListItem
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/upload/list [get]
func (h *Handlers) ListUploads(c *gin.Context) {
	items, err := h.catalog.ListUploads(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, "failed to list uploads", err)

		return
	}

	c.JSON(http.StatusOK, items)
}

// Download 下载原始文件.
//
//	@Summary	下载原始文件
//	@Tags		上传
//	@Produce	octet-stream
//	@Param		filename	path		string	true	"文件名"
//	@Success	200			{file}		file
//	@Failure	404			{object}	types.ErrorResponse
//	@Router		/upload/download/{filename} [get]
func (h *Handlers) Download(c *gin.Context) {
	name := c.Param("filename")

	rc, info, err := h.catalog.Download(c.Request.Context(), name)
	if errors.Is(err, service.ErrNotFound) {
		abortError(c, http.StatusNotFound, msgFileNotFound, err)

		return
	}

	if err != nil {
		abortError(c, http.StatusInternalServerError, "failed to open file", err)

		return
	}
	defer rc.Close()

	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	}

	c.DataFromReader(http.StatusOK, info.Size, "application/octet-stream", rc, headers)
}

// GetUpload 查询上传详情.
//
//	@Summary	上传详情
//	@Tags		上传
//	@Produce	json
//	@Param		id	path		int	true	"上传 ID"
//	@Success	200	{object}	types.UploadDetail
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/upload/{id} [get]
func (h *Handlers) GetUpload(c *gin.Context) {
	id, err := service.ParseUploadID(c.Param("id"))
	if err != nil {
		abortError(c, http.StatusNotFound, msgUploadNotFound, err)

		return
	}

	detail, err := h.catalog.GetUpload(c.Request.Context(), id)
	if err != nil {
		status := statusFor(err)
		msg := msgUploadNotFound

		if status != http.StatusNotFound {
			msg = "failed to get upload"
		}

		abortError(c, status, msg, err)

		return
	}

	c.JSON(http.StatusOK, detail)
}

// ListRecords 分页查询上传的数据行.
//
//	@Summary	数据行
//	@Tags		上传
//	@Produce	json
//	@Param		id		path		int	true	"上传 ID"
//	@Param		limit	query		int	false	"每页行数 (1-1000)，默认 100"
//	@Param		offset	query		int	false	"起始行"
//	@Success	200		{object}	types.RecordPage
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/upload/{id}/records [get]
func (h *Handlers) ListRecords(c *gin.Context) {
	id, err := service.ParseUploadID(c.Param("id"))
	if err != nil {
		abortError(c, http.StatusNotFound, msgUploadNotFound, err)

		return
	}

	var q types.ListRecordsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortError(c, http.StatusBadRequest, "invalid query: "+err.Error(), err)

		return
	}

	if err := rule.ValidateStruct(&q); err != nil {
		abortError(c, http.StatusBadRequest, "invalid query: "+err.Error(), err)

		return
	}

	page, err := h.catalog.ListRecords(c.Request.Context(), id, q.Limit, q.Offset)
	if err != nil {
		status := statusFor(err)
		msg := msgUploadNotFound

		if status != http.StatusNotFound {
			msg = "failed to list records"
		}

		abortError(c, status, msg, err)

		return
	}

	c.JSON(http.StatusOK, page)
}
