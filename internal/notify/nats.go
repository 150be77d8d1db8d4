package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSChannel publishes messages onto a NATS subject. Other consoles and
// bots in the deployment subscribe to the subject tree to mirror alerts.
type NATSChannel struct {
	conn        *nats.Conn
	subjectRoot string
}

// NATSConfig holds connection settings for the NATS channel.
type NATSConfig struct {
	URL           string
	SubjectRoot   string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns a config with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectRoot:   "watchdesk.alerts",
		Name:          "watchdesk-notify",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSChannel connects to NATS and returns a publishing channel.
func NewNATSChannel(cfg NATSConfig) (*NATSChannel, error) {
	if cfg.SubjectRoot == "" {
		cfg.SubjectRoot = "watchdesk.alerts"
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSChannel{conn: conn, subjectRoot: cfg.SubjectRoot}, nil
}

func (n *NATSChannel) Type() string {
	return "nats"
}

func (n *NATSChannel) Send(ctx context.Context, subject, text string) error {
	payload, err := json.Marshal(map[string]string{
		"subject": subject,
		"text":    text,
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal nats payload: %w", err)
	}
	if err := n.conn.Publish(n.subjectRoot+"."+subject, payload); err != nil {
		return fmt.Errorf("publish to nats: %w", err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (n *NATSChannel) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
