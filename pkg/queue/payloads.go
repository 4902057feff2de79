package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// ID 事件唯一标识（ULID，按时间有序）.
	ID string `json:"id"`
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// FileRef 标识文件存储中的原始文件.
type FileRef struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// UploadStoredPayload 文件已保存.
type UploadStoredPayload struct {
	File   FileRef `json:"file"`
	UserID uint    `json:"user_id"`
}

// UploadIngestedPayload 导入完成.
type UploadIngestedPayload struct {
	UploadID    uint     `json:"upload_id"`
	UserID      uint     `json:"user_id"`
	File        FileRef  `json:"file"`
	RecordCount int      `json:"record_count"`
	Columns     []string `json:"columns"`
	DurationMS  int64    `json:"duration_ms"`
}

// UploadRejectedPayload 内容无法解析.
type UploadRejectedPayload struct {
	File   FileRef `json:"file"`
	UserID uint    `json:"user_id"`
	Reason string  `json:"reason"`
}

// UploadFailedPayload 记录提交失败.
type UploadFailedPayload struct {
	UploadID uint    `json:"upload_id"`
	File     FileRef `json:"file"`
	// Source 触发来源：ingest 或 reconcile.
	Source string `json:"source"`
	Error  string `json:"error"`
}
