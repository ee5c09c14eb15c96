package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/equipment-rental/internal/lib/sl"
)

// dialTimeout bounds how long a request waits on an unreachable broker.
const dialTimeout = 2 * time.Second

// Publisher sends RentalEvents to a durable queue.  A connection is dialled
// per publish; event volume is one message per order mutation, so no
// connection is held open between requests.
type Publisher struct {
    url   string
    queue string
    log   *slog.Logger
}

// NewPublisher returns a Publisher for the given broker URL and queue name.
func NewPublisher(url, queue string, log *slog.Logger) *Publisher {
    return &Publisher{url: url, queue: queue, log: log}
}

// Publish marshals ev and sends it as a persistent message.  Errors are
// logged and returned so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev RentalEvent) error {
    const op = "queue.Publisher.Publish"
    log := p.log.With(slog.String("op", op), slog.String("event", ev.Type), slog.Uint64("rental_id", ev.RentalID))

    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
    if err != nil {
        log.Warn("dial failed", sl.Err(err))
        return fmt.Errorf("%s: dial: %w", op, err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Warn("channel open failed", sl.Err(err))
        return fmt.Errorf("%s: channel: %w", op, err)
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch, p.queue); err != nil {
        log.Warn("queue declare failed", sl.Err(err))
        return fmt.Errorf("%s: %w", op, err)
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("%s: marshal: %w", op, err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
        log.Warn("publish failed", sl.Err(err))
        return fmt.Errorf("%s: publish: %w", op, err)
    }
    log.Debug("event published")
    return nil
}

// declare makes sure the durable queue exists.  It is idempotent.
func declare(ch *amqp.Channel, name string) error {
    _, err := ch.QueueDeclare(
        name,  // name
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    )
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    return nil
}
