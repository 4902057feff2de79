package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 上传流程 events --------------------------

// PublishUploadStored 发布 dv.upload.stored 事件.
func PublishUploadStored(pub message.Publisher, payload UploadStoredPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicUploadStored, payload, opts...)
}

// PublishUploadIngested 发布 dv.upload.ingested 事件.
func PublishUploadIngested(pub message.Publisher, payload UploadIngestedPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicUploadIngested, payload, opts...)
}

// PublishUploadRejected 发布 dv.upload.rejected 事件.
func PublishUploadRejected(pub message.Publisher, payload UploadRejectedPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicUploadRejected, payload, opts...)
}

// PublishUploadFailed 发布 dv.upload.failed 事件.
func PublishUploadFailed(pub message.Publisher, payload UploadFailedPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicUploadFailed, payload, opts...)
}

// ParseUploadIngested 将 Watermill 消息解析为强类型 Envelope.
func ParseUploadIngested(msg *message.Message) (Message[UploadIngestedPayload], error) {
	return ParseWatermillMessage[UploadIngestedPayload](msg)
}

func publish[T any](pub message.Publisher, topic string, payload T, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}
