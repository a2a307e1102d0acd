package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"pizzeria-platform/internal/config"
	"pizzeria-platform/internal/logger"
	"pizzeria-platform/internal/models"
)

const ordersExchange = "order_events_fanout"

// Connection wraps the RabbitMQ connection with reconnection logic.
type Connection struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// Connect establishes a RabbitMQ connection with startup retries and
// declares the order events exchange.
func Connect(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	c := &Connection{
		logger: log,
		url:    cfg.RabbitMQURL(),
	}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	return c, nil
}

func (c *Connection) connect() error {
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		c.conn, err = amqp091.Dial(c.url)
		if err == nil {
			c.channel, err = c.conn.Channel()
			if err == nil {
				if setupErr := c.setupTopology(); setupErr != nil {
					c.close()
					err = setupErr
				} else {
					return nil
				}
			} else {
				c.conn.Close()
			}
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)
			time.Sleep(waitTime)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func (c *Connection) setupTopology() error {
	err := c.channel.ExchangeDeclare(
		ordersExchange,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", ordersExchange, err)
	}
	return nil
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed checks if the connection is closed.
func (c *Connection) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect re-establishes the connection.
func (c *Connection) Reconnect() error {
	c.close()
	return c.connect()
}

// OrderEvent is the message fanned out to push-notification subscribers.
type OrderEvent struct {
	Event          string    `json:"event"`
	OrganizationID string    `json:"organization_id"`
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	Status         string    `json:"status"`
	Total          float64   `json:"total"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher fans order events out to notification subscribers. Publishing is
// fire-and-forget: failures are logged and never abort order placement.
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a publisher on the given connection.
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{conn: conn, logger: log}
}

// OrderPlaced announces a newly created order.
func (p *Publisher) OrderPlaced(ctx context.Context, order *models.Order) {
	p.publish(ctx, "order_created", order)
}

// OrderUpdated announces a staff edit of an existing order.
func (p *Publisher) OrderUpdated(ctx context.Context, order *models.Order) {
	p.publish(ctx, "order_updated", order)
}

func (p *Publisher) publish(ctx context.Context, event string, order *models.Order) {
	msg := OrderEvent{
		Event:          event,
		OrganizationID: order.OrganizationID.String(),
		OrderID:        order.ID.String(),
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		Total:          order.Total,
		Timestamp:      time.Now().UTC(),
	}

	if err := p.publishMessage(ctx, msg); err != nil {
		p.logger.Error("notification_publish_failed",
			"Failed to publish order event", "", err, map[string]interface{}{
				"event":    event,
				"order_id": msg.OrderID,
			})
	}
}

func (p *Publisher) publishMessage(ctx context.Context, message OrderEvent) error {
	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.conn.channel.PublishWithContext(publishCtx,
		ordersExchange,
		"", // routing key ignored for fanout
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		})
}
