// Package mq 提供基于 Watermill 的统一发布/订阅接口，用于上传流程事件.
//
// 支持的 MQ 类型：
//   - memory（gochannel，进程内，默认）
//   - nats（可选 JetStream）
//
// 使用示例：
//
//	client, err := mq.New(ctx, &cfg.MQ, mq.WithMetrics(prometheus.DefaultRegisterer))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	_ = queue.PublishUploadIngested(client, payload)
//	ch, _ := client.Subscribe(ctx, queue.TopicUploadIngested)
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/log"
)

// ErrClosed 客户端已关闭.
var ErrClosed = errors.New("mq: client closed")

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[configs.MQType]Factory{}
)

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[t] = f
}

// GetRegisteredTypes 返回已注册的 MQ 类型.
func GetRegisteredTypes() []configs.MQType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher 与 Subscriber，并实现 message.Publisher.
type Client struct {
	kind       configs.MQType
	prefix     string
	publisher  message.Publisher
	subscriber message.Subscriber

	mu     sync.RWMutex
	closed bool
}

// Option 配置 Client.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	logger     watermill.LoggerAdapter
}

// WithMetrics 使用 watermill prometheus 装饰器记录发布/订阅指标.
func WithMetrics(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithLogger 替换默认的 zerolog 适配器.
func WithLogger(l watermill.LoggerAdapter) Option {
	return func(o *options) { o.logger = l }
}

// New 按配置创建消息队列客户端.
func New(ctx context.Context, cfg *configs.MQConfig, opts ...Option) (*Client, error) {
	o := options{logger: NewLoggerAdapter(log.Logger())}
	for _, opt := range opts {
		opt(&o)
	}

	kind := cfg.Type
	if kind == "" {
		kind = configs.MQTypeMemory
	}

	factoriesMu.RLock()
	factory, ok := factories[kind]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", kind)
	}

	pub, sub, err := factory(ctx, cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", kind, err)
	}

	if o.registerer != nil {
		builder := metrics.NewPrometheusMetricsBuilder(o.registerer, "dataviz", "mq")

		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	c := &Client{kind: kind, publisher: pub, subscriber: sub}
	if kind == configs.MQTypeNATS {
		c.prefix = cfg.NATS.SubjectPrefix
	}

	log.Logger().Info().Str("type", string(kind)).Msg("MQ client initialized")

	return c, nil
}

// Kind 返回 MQ 类型.
func (c *Client) Kind() configs.MQType { return c.kind }

// Topic 返回加上前缀后的实际主题.
func (c *Client) Topic(topic string) string { return c.prefix + topic }

// Publish 发布消息，实现 message.Publisher.
func (c *Client) Publish(topic string, msgs ...*message.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	return c.publisher.Publish(c.Topic(topic), msgs...)
}

// Subscribe 订阅主题.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}

	return c.subscriber.Subscribe(ctx, c.Topic(topic))
}

// HealthCheck 检查客户端是否可用.
func (c *Client) HealthCheck(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	return nil
}

// Close 关闭资源，可重复调用.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	return errors.Join(c.publisher.Close(), c.subscriber.Close())
}
