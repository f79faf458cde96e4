package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event types emitted by the thread lifecycle
const (
	EventThreadCreated       = "thread.created"
	EventAchievementProgress = "achievement.progress"
	EventMentionCreated      = "mention.created"
)

// Emitter fire-and-forget 事件发送
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload any) error
	Close() error
}

// NoopEmitter 未配置 MQ 时使用
type NoopEmitter struct{}

// NewNoop 创建 NoopEmitter
func NewNoop() Emitter { return NoopEmitter{} }

func (NoopEmitter) Emit(ctx context.Context, eventType string, payload any) error { return nil }
func (NoopEmitter) Close() error                                                  { return nil }

// Envelope 消息体
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// RabbitEmitter 发布到 topic exchange，routing key 即事件类型
type RabbitEmitter struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewRabbitEmitter 连接并声明 exchange
func NewRabbitEmitter(url, exchange string) (*RabbitEmitter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitEmitter{conn: conn, ch: ch, exchange: exchange}, nil
}

// Emit 发布事件
func (p *RabbitEmitter) Emit(ctx context.Context, eventType string, payload any) error {
	if p == nil || p.ch == nil {
		return nil
	}

	body, err := json.Marshal(Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	// broker 卡住时不拖住请求
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) <= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
	}

	return p.ch.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now(),
	})
}

// Close 关闭 channel 和连接
func (p *RabbitEmitter) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	return nil
}
