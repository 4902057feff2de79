package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/dataviz/pkg/configs"
	ctxPkg "github.com/yeisme/dataviz/pkg/context"
	"github.com/yeisme/dataviz/pkg/log"
	"github.com/yeisme/dataviz/pkg/queue"
)

const producer = "dataviz"

// Events 按配置开关发布上传流程事件，发布失败只记录日志.
// pub 为 nil 时所有方法为空操作.
type Events struct {
	pub message.Publisher
	cfg configs.EventsConfig
}

// NewEvents 创建事件发布器.
func NewEvents(pub message.Publisher, cfg configs.EventsConfig) *Events {
	return &Events{pub: pub, cfg: cfg}
}

func (e *Events) enabled(topic string) bool {
	if e == nil || e.pub == nil || !e.cfg.Enabled {
		return false
	}

	switch topic {
	case queue.TopicUploadStored:
		return e.cfg.Upload.Stored
	case queue.TopicUploadIngested:
		return e.cfg.Upload.Ingested
	case queue.TopicUploadRejected:
		return e.cfg.Upload.Rejected
	case queue.TopicUploadFailed:
		return e.cfg.Upload.Failed
	default:
		return false
	}
}

func headerOpts(ctx context.Context) []func(*queue.EventHeader) {
	opts := []func(*queue.EventHeader){queue.WithProducer(producer)}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, queue.WithTraceID(sc.TraceID().String()))
	} else if id := ctxPkg.GetRequestID(ctx); id != "" {
		opts = append(opts, queue.WithTraceID(id))
	}

	return opts
}

func (e *Events) report(topic string, err error) {
	if err != nil {
		log.Logger().Warn().Err(err).Str("topic", topic).Msg("publish event failed")
	}
}

// UploadStored 发布 dv.upload.stored.
func (e *Events) UploadStored(ctx context.Context, p queue.UploadStoredPayload) {
	if !e.enabled(queue.TopicUploadStored) {
		return
	}

	e.report(queue.TopicUploadStored, queue.PublishUploadStored(e.pub, p, headerOpts(ctx)...))
}

// UploadIngested 发布 dv.upload.ingested.
func (e *Events) UploadIngested(ctx context.Context, p queue.UploadIngestedPayload) {
	if !e.enabled(queue.TopicUploadIngested) {
		return
	}

	e.report(queue.TopicUploadIngested, queue.PublishUploadIngested(e.pub, p, headerOpts(ctx)...))
}

// UploadRejected 发布 dv.upload.rejected.
func (e *Events) UploadRejected(ctx context.Context, p queue.UploadRejectedPayload) {
	if !e.enabled(queue.TopicUploadRejected) {
		return
	}

	e.report(queue.TopicUploadRejected, queue.PublishUploadRejected(e.pub, p, headerOpts(ctx)...))
}

// UploadFailed 发布 dv.upload.failed.
func (e *Events) UploadFailed(ctx context.Context, p queue.UploadFailedPayload) {
	if !e.enabled(queue.TopicUploadFailed) {
		return
	}

	e.report(queue.TopicUploadFailed, queue.PublishUploadFailed(e.pub, p, headerOpts(ctx)...))
}
