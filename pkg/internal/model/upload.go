// Package model 定义持久化模型.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// UploadStatus 导入状态.
type UploadStatus string

const (
	// UploadPending 上传记录已提交，数据行尚未提交.
	UploadPending UploadStatus = "pending"
	// UploadComplete 数据行已全部提交.
	UploadComplete UploadStatus = "complete"
	// UploadFailed 数据行提交失败或导入被中断，此时没有数据行.
	UploadFailed UploadStatus = "failed"
)

// Upload 一次导入的元数据.
type Upload struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint `gorm:"not null;index"           json:"user_id"`
	// 原始文件名，同时是文件存储中的键
	Filename    string       `gorm:"size:512;not null;index"  json:"filename"`
	ContentType string       `gorm:"size:255"                 json:"content_type"`
	Size        int64        `json:"size"`
	Checksum    string       `gorm:"size:32"                  json:"checksum"` // xxhash64 十六进制
	StoragePath string       `gorm:"size:1024"                json:"storage_path"`
	Status      UploadStatus `gorm:"size:16;not null;index"   json:"status"`
	RecordCount int          `gorm:"not null;default:0"       json:"record_count"`
	// Columns 规范化后的列名，按源文件顺序
	Columns    datatypes.JSONSlice[string] `json:"columns"`
	Error      string                      `gorm:"type:text"          json:"error,omitempty"`
	UploadedAt time.Time                   `gorm:"autoCreateTime;index" json:"uploaded_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// DataRecord 一行规范化后的数据，以 JSON 文档形式存储.
type DataRecord struct {
	ID       uint              `gorm:"primaryKey;autoIncrement"     json:"id"`
	UploadID uint              `gorm:"not null;index:idx_upload_row" json:"upload_id"`
	RowIndex int               `gorm:"not null;index:idx_upload_row" json:"row_index"`
	Data     datatypes.JSONMap `json:"data"`

	Upload *Upload `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Models 需要迁移的全部模型.
func Models() []any {
	return []any{&Upload{}, &DataRecord{}}
}
