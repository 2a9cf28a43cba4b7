package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// RoutingKeyOrderCreated is published once per newly materialized order.
const RoutingKeyOrderCreated = "order.created"

// NewOrderDetails is the human-facing summary sent with a new order notification.
type NewOrderDetails struct {
	CustomerName string `json:"customerName"`
	ProviderName string `json:"providerName"`
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory"`
	Amount       int64  `json:"amount"`
	DateFrom     string `json:"dateFrom"`
	DateTo       string `json:"dateTo"`
}

// OrderCreatedEvent is the message body on the order events exchange.
type OrderCreatedEvent struct {
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId"`
	ProviderID string          `json:"providerId"`
	Details    NewOrderDetails `json:"details"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Notifier delivers best-effort notifications. Callers ignore its errors
// beyond logging them.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, orderID, customerID, providerID string, details NewOrderDetails) error
	Close()
}

// EventProducer publishes notifications to a RabbitMQ topic exchange.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// FallbackNotifier is used when RabbitMQ is unavailable at startup.
type FallbackNotifier struct{}

func (FallbackNotifier) NotifyNewOrder(ctx context.Context, orderID, customerID, providerID string, details NewOrderDetails) error {
	log.Printf("[NOTIFY] RabbitMQ unavailable, skipping new order notification for %s", orderID)
	return nil
}

func (FallbackNotifier) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and opens a publishing channel.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch, exchange: exchange}, nil
}

// NewNotifier returns an EventProducer, or a FallbackNotifier when the broker
// cannot be reached.
func NewNotifier(amqpURL, exchange string) Notifier {
	if amqpURL == "" {
		log.Println("[NOTIFY] RABBITMQ_URL not set, notifications disabled")
		return FallbackNotifier{}
	}
	producer, err := NewEventProducer(amqpURL, exchange)
	if err != nil {
		log.Printf("[NOTIFY] RabbitMQ connection failed, notifications disabled: %v", err)
		return FallbackNotifier{}
	}
	log.Println("RabbitMQ connection established")
	return producer
}

// Publish sends body as JSON with the given routing key, reopening the
// channel once if the first attempt fails.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	log.Printf("[NOTIFY] Publish failed, reopening channel: routing_key=%s err=%v", routingKey, err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *EventProducer) NotifyNewOrder(ctx context.Context, orderID, customerID, providerID string, details NewOrderDetails) error {
	return p.Publish(ctx, RoutingKeyOrderCreated, OrderCreatedEvent{
		OrderID:    orderID,
		CustomerID: customerID,
		ProviderID: providerID,
		Details:    details,
		Timestamp:  time.Now(),
	})
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
