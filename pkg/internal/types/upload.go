// Package types 定义 HTTP 接口的请求与响应结构.
package types

import "time"

// UploadResponse 上传成功响应.
type UploadResponse struct {
	Message      string `json:"message"`
	TotalRecords int    `json:"total_records"`
	UploadID     uint   `json:"upload_id"`
	FilePath     string `json:"file_path"`
}

// ErrorResponse 错误响应.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PartialCommitResponse 上传行已提交但数据行写入失败.
type PartialCommitResponse struct {
	Error    string `json:"error"`
	UploadID uint   `json:"upload_id"`
}

// UploadListItem 上传列表中的一项.
type UploadListItem struct {
	ID          uint      `json:"id"`
	Filename    string    `json:"filename"`
	UploadedAt  time.Time `json:"uploaded_at"`
	SizeKB      float64   `json:"size_kb"`
	DownloadURL string    `json:"download_url"`
	Status      string    `json:"status"`
	RecordCount int       `json:"record_count"`
}

// UploadDetail 单个上传的详情.
type UploadDetail struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	Status      string    `json:"status"`
	RecordCount int       `json:"record_count"`
	Columns     []string  `json:"columns"`
	Error       string    `json:"error,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	DownloadURL string    `json:"download_url"`
}

// ListRecordsQuery 分页查询参数.
type ListRecordsQuery struct {
	Limit  int `form:"limit"  rule:"omitempty,min=1,max=1000"`
	Offset int `form:"offset" rule:"omitempty,min=0"`
}

// RecordItem 一行数据.
type RecordItem struct {
	RowIndex int            `json:"row_index"`
	Data     map[string]any `json:"data"`
}

// RecordPage 数据行分页结果.
type RecordPage struct {
	Records []RecordItem `json:"records"`
	Total   int64        `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}
