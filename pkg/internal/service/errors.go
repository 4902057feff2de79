package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMediaType 声明的内容类型不在允许列表中，此时不会写入任何数据.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrUnsupportedContent 文件已保存，但内容无法解析为表格.
	ErrUnsupportedContent = errors.New("unsupported content")
	// ErrInvalidFilename 文件名不能作为存储键.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrTooLarge 上传超过 ingest.max_upload_bytes.
	ErrTooLarge = errors.New("upload too large")
	// ErrNotFound 文件或上传记录不存在.
	ErrNotFound = errors.New("not found")
	// ErrPartialCommit 上传行已提交而数据行批次失败.
	ErrPartialCommit = errors.New("partial commit")
)

// ContentError 描述内容无法解析的原因，errors.Is 可匹配 ErrUnsupportedContent.
type ContentError struct {
	Err error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnsupportedContent, e.Err)
}

func (e *ContentError) Unwrap() []error { return []error{ErrUnsupportedContent, e.Err} }

// Reason 返回解析器给出的原因.
func (e *ContentError) Reason() string { return e.Err.Error() }

// PartialCommitError 上传 UploadID 已提交并标记为 failed，数据行未写入.
type PartialCommitError struct {
	UploadID uint
	Err      error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("upload %d: records not committed: %v", e.UploadID, e.Err)
}

func (e *PartialCommitError) Unwrap() []error { return []error{ErrPartialCommit, e.Err} }
