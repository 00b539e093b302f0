package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// subjectPrefix roots every event subject, the full subject is
// crewd.events.<type>.
const subjectPrefix = "crewd.events."

// NATSSink publishes events to a NATS subject per event type.
type NATSSink struct {
	conn *nats.Conn
	log  *logging.Logger
}

// ConnectNATS dials the broker with bounded reconnect behavior and
// wraps the connection in a sink.
func ConnectNATS(url string, log *logging.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return NewNATSSink(nc, log), nil
}

// NewNATSSink wraps an existing connection. The sink does not own the
// connection's lifetime unless it dialed it itself via ConnectNATS.
func NewNATSSink(conn *nats.Conn, log *logging.Logger) *NATSSink {
	if log == nil {
		log = logging.Nop()
	}
	return &NATSSink{conn: conn, log: log.Named("nats")}
}

// Deliver publishes the event. Failures are logged and dropped, event
// delivery never blocks coordination.
func (s *NATSSink) Deliver(ctx context.Context, ev Event) {
	data, err := encode(ev)
	if err != nil {
		s.log.Warn(ctx, "encoding event failed", zap.Error(err))
		return
	}
	if err := s.conn.Publish(subjectPrefix+string(ev.Type), data); err != nil {
		s.log.Warn(ctx, "publishing event failed",
			zap.String("event_type", string(ev.Type)),
			zap.Error(err))
	}
}

// Close flushes pending publishes and drops the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Flush(); err != nil {
		return err
	}
	s.conn.Close()
	return nil
}
