package fgblock

import (
	"context"

	nats "github.com/nats-io/nats.go"
	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
)

// Notifier is told about every finished run
type Notifier interface {
	Notify(ctx context.Context, report *data.RunReport) error
}

// NatsNotifier publishes run reports as JSON messages on a NATS subject
type NatsNotifier struct {
	conn    *nats.Conn
	jsonc   *nats.EncodedConn
	subject string
}

// NewNatsNotifier connects to the NATS server at url
func NewNatsNotifier(url, subject string) (*NatsNotifier, error) {
	natsErrorFunc := func(c *nats.Conn, s *nats.Subscription, err error) {
		log.Warnf("nats error: %v", err)
	}

	conn, err := nats.Connect(url, nats.Name("fgblock"), nats.ErrorHandler(natsErrorFunc))
	if err != nil {
		return nil, err
	}

	jsonc, err := nats.NewEncodedConn(conn, nats.JSON_ENCODER)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Infof("publishing run reports to %s on %s", subject, url)

	return &NatsNotifier{
		conn:    conn,
		jsonc:   jsonc,
		subject: subject,
	}, nil
}

// Notify publishes report and waits until the server has received it
func (n *NatsNotifier) Notify(ctx context.Context, report *data.RunReport) error {
	if err := n.jsonc.Publish(n.subject, report); err != nil {
		return err
	}
	return n.conn.FlushWithContext(ctx)
}

// Close drains the connection
func (n *NatsNotifier) Close() error {
	return n.conn.Drain()
}
