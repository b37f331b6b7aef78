package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var errCircuitOpen = errors.New("circuit breaker is open")

// Client publishes and consumes report messages. Publishing goes through a
// circuit breaker so a dead broker fails fast instead of stalling callers.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	replyQueue   string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

// NewClient dials the broker and declares the exchange, the request queue
// and, when set, the reply queue.
func NewClient(url, exchangeName, queueName, replyQueue string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		replyQueue:   replyQueue,
	}
	if _, err := c.ensureChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(channel); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return channel, nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on the direct exchange.
	if err := ch.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	if c.replyQueue != "" {
		if _, err := ch.QueueDeclare(c.replyQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare reply queue: %w", err)
		}
	}
	return nil
}

// PublishRequest enqueues a report request on the request queue.
func (c *Client) PublishRequest(ctx context.Context, req *ReportRequest) error {
	body, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, c.exchangeName, c.queueName, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     req.ID,
		CorrelationId: req.ID,
		ReplyTo:       req.ReplyTo,
		Timestamp:     time.Now(),
		Body:          body,
	})
}

// PublishReply sends reply to replyTo through the default exchange. An
// empty replyTo falls back to the configured reply queue.
func (c *Client) PublishReply(ctx context.Context, replyTo string, reply *ReportReply) error {
	if replyTo == "" {
		replyTo = c.replyQueue
	}
	if replyTo == "" {
		return errors.New("no reply queue for report reply")
	}
	body, err := reply.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, "", replyTo, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     reply.ID,
		CorrelationId: reply.RequestID,
		Timestamp:     time.Now(),
		Body:          body,
	})
}

func (c *Client) publish(ctx context.Context, exchange, key string, msg amqp091.Publishing) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("%w, not publishing to %s", errCircuitOpen, key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		if isConnectionError(err) {
			c.recordFailure()
			c.reset()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published message",
		"component", "amqp",
		"message_id", msg.MessageId,
		"exchange", exchange,
		"routing_key", key)
	return nil
}

// Handler answers one request. A returned error requeues the delivery
// once.
type Handler func(ctx context.Context, req *ReportRequest) error

// ConsumeRequests dispatches request deliveries to handler, running at
// most concurrency handlers at a time. It returns when ctx is done (after
// in-flight handlers finish) or the delivery channel closes.
func (c *Client) ConsumeRequests(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming report requests", "component", "amqp", "queue", c.queueName, "concurrency", concurrency)

	// In-flight handlers finish their reply after ctx is cancelled.
	hctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "component", "amqp", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			req, err := requestFromDelivery(delivery)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to decode report request", "component", "amqp", "error", err)
				delivery.Nack(false, false)
				continue
			}
			g.Go(func() error {
				dispatch(hctx, delivery, req, handler)
				return nil
			})
		}
	}
}

func dispatch(ctx context.Context, d amqp091.Delivery, req *ReportRequest, handler Handler) {
	if err := handler(ctx, req); err != nil {
		requeue := !d.Redelivered
		slog.ErrorContext(ctx, "Failed to handle report request",
			"component", "amqp",
			"message_id", req.ID,
			"requeue", requeue,
			"error", err)
		d.Nack(false, requeue)
		return
	}
	d.Ack(false)
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// whenever the broker drops the channel.
func (c *Client) Run(ctx context.Context, concurrency int, handler Handler) error {
	for attempt := 0; ; attempt++ {
		err := c.ConsumeRequests(ctx, concurrency, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.reset()
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "Consumer stopped, reconnecting",
			"component", "amqp", "error", err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// requestFromDelivery fills the id and reply queue from the AMQP
// properties when the body leaves them out.
func requestFromDelivery(d amqp091.Delivery) (*ReportRequest, error) {
	req, err := decodeRequest(d.Body)
	if err != nil {
		return nil, err
	}
	if req.ReplyTo == "" {
		req.ReplyTo = d.ReplyTo
	}
	for _, id := range []string{req.ID, d.CorrelationId, d.MessageId, uuid.NewString()} {
		if id != "" {
			req.ID = id
			break
		}
	}
	return req, nil
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			slog.Warn("AMQP circuit breaker opened", "component", "amqp", "failures", n)
		}
	}
}

// exponentialBackoff is 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

var connectionErrorMarkers = []string{
	"connection refused",
	"connection closed",
	"connection reset",
	"closed network connection",
	"broken pipe",
	"eof",
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range connectionErrorMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
