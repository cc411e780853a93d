package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// subjectPrefix is the namespace the service owns on the bus. The client
// refuses subjects outside it, so a typo'd subject fails at wiring time
// instead of silently publishing into another service's space.
const subjectPrefix = "atlas."

// Subjects published and consumed by the service.
const (
	SubjectInputStored = subjectPrefix + "input.stored"
	SubjectNoteSaved   = subjectPrefix + "note.saved"
	SubjectRegistered  = subjectPrefix + "service.registered"
)

// InputStored announces a raw input durably written by an ingestion
// handler. The pipeline consumes it and runs the analysis chain.
type InputStored struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	SourceType string `json:"source_type"`
	Origin     string `json:"origin"`
	Body       string `json:"body"`
	ReceivedAt string `json:"received_at"`
}

// NoteSaved announces a new analysis record in a user's history.
type NoteSaved struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Keywords int    `json:"keywords"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func Connect(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	if err := checkSubject(subject); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	if err := checkSubject(subject); err != nil {
		return err
	}
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func checkSubject(subject string) error {
	if !strings.HasPrefix(subject, subjectPrefix) {
		return fmt.Errorf("subject %q outside the %s* namespace", subject, subjectPrefix)
	}
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
