// Package queue 定义上传导入流程的事件，供下游（可视化刷新、通知、审计）订阅.
//
// 概览
//   - 发布/订阅模型，传输层见 internal/storage/mq（gochannel 或 NATS）
//   - 统一的消息封装：Message[Payload] = Header + Payload
//   - 主题常量见 topics.go，负载结构体见 payloads.go
//   - JSON 编解码（bytedance/sonic）
//
// 消息信封 JSON 结构
//
//	{
//	  "header": {
//	    "id": "01J9ZQ7V6N8G2Y4K1B3C5D7E9F",
//	    "topic": "dv.upload.ingested",
//	    "trace_id": "optional-trace-id",
//	    "producer": "dataviz",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { "upload_id": 3, "record_count": 120, ... }
//	}
//
// 订阅示例
//
//	ch, _ := client.Subscribe(ctx, queue.TopicUploadIngested)
//	for m := range ch {
//	    env, _ := queue.ParseUploadIngested(m)
//	    // env.Header / env.Payload
//	    m.Ack()
//	}
//
// 消费者应忽略未知字段；header.id 可用于幂等去重.
package queue

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/oklog/ulid"
)

const (
	PayloadVersionV1 string = "v1"
)

// ErrUnsupportedVersion 信封版本不是当前消费者能识别的版本.
var ErrUnsupportedVersion = errors.New("queue: unsupported payload version")

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEventID 生成按时间有序的事件 ID.
func NewEventID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewEventHeader 便捷创建事件头.
func NewEventHeader(topic string, opts ...func(*EventHeader)) EventHeader {
	hdr := EventHeader{
		ID:         NewEventID(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithTraceID 设置 TraceID.
func WithTraceID(id string) func(*EventHeader) { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) func(*EventHeader) { return func(h *EventHeader) { h.Producer = p } }

// Encode 将消息封装为 JSON 字节切片.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 字节解码为消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造一个 watermill 消息，消息 ID 与事件 ID 一致.
func NewWatermillMessage[T any](topic string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)
	env := Message[T]{Header: header, Payload: payload}

	data, err := Encode(env)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(header.ID, data)
	msg.Metadata.Set("topic", topic)

	if header.TraceID != "" {
		msg.Metadata.Set("trace_id", header.TraceID)
	}

	if header.Producer != "" {
		msg.Metadata.Set("producer", header.Producer)
	}

	msg.Metadata.Set("occurred_at", header.OccurredAt.Format(time.RFC3339Nano))
	msg.Metadata.Set("version", header.Version)

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载，未知版本返回 ErrUnsupportedVersion.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	m, err := Decode[T](msg.Payload)
	if err != nil {
		return m, fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}

	if v := m.Header.Version; v != "" && v != PayloadVersionV1 {
		return m, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}

	return m, nil
}
