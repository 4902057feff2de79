// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：dv.<域>.<动作>，尽量稳定且向后兼容.
const (
	// TopicUploadStored 原始文件已写入文件存储，此时尚未解析.
	TopicUploadStored = "dv.upload.stored"
	// TopicUploadIngested 记录批量提交完成，上传状态为 complete.
	TopicUploadIngested = "dv.upload.ingested"
	// TopicUploadRejected 文件已保存但无法解析或列名冲突.
	TopicUploadRejected = "dv.upload.rejected"
	// TopicUploadFailed 上传行已提交但记录批次失败，或被对账任务判定为中断.
	TopicUploadFailed = "dv.upload.failed"
)

// UploadTopics 上传流程相关主题集合.
var UploadTopics = []string{
	TopicUploadStored,
	TopicUploadIngested,
	TopicUploadRejected,
	TopicUploadFailed,
}
