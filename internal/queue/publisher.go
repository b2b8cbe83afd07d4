package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

const pushQueueName = "push.notify"

// Publisher publishes push batches to the push.notify queue.  It
// implements the notification router's PushSender seam: failures are
// logged and returned so the caller can ignore them without interrupting
// the triggering operation.  Messages are marked persistent.
type Publisher struct {
    url string
}

// NewPublisher returns a Publisher dialing the given AMQP URL.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// SendToUsers publishes one batched push event covering all recipients.
// The function attempts to be robust and to never panic; any error is
// logged and returned.
func (p *Publisher) SendToUsers(ctx context.Context, userIDs []uint64, title, body string, data map[string]string) error {
    if len(userIDs) == 0 {
        return nil
    }
    conn, err := amqp.Dial(p.url)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so batches survive
    // broker restarts.
    if _, err := ch.QueueDeclare(
        pushQueueName, // name
        true,          // durable
        false,         // autoDelete
        false,         // exclusive
        false,         // noWait
        nil,           // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    payload, err := json.Marshal(PushEvent{
        UserIDs: userIDs,
        Title:   title,
        Body:    body,
        Data:    data,
        SentAt:  time.Now().UTC().Format(time.RFC3339),
    })
    if err != nil {
        log.Printf("rabbitmq: marshal push event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         payload,
    }

    if err := ch.PublishWithContext(ctx,
        "",            // default exchange
        pushQueueName, // routing key = queue name
        false,         // mandatory
        false,         // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}
