package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/pkg/logger"
)

// ClientConfig holds NATS connection configuration.
type ClientConfig struct {
	URL      string
	Name     string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
	// JetStream publishes commands through JetStream and waits for the ack.
	JetStream bool
}

// Conn is the connection the adapter publishes and subscribes on.
type Conn interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (Subscription, error)
	IsConnected() bool
	Close()
}

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
}

// Dialer opens a new connection.
type Dialer func(ctx context.Context) (Conn, error)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes a connection to the NATS server.
func Connect(ctx context.Context, cfg ClientConfig, log *logger.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	c := &Client{conn: nc, logger: log}
	if cfg.JetStream {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		c.js = js
	}
	return c, nil
}

// NewDialer returns a Dialer that connects with cfg. In JetStream mode the
// command stream for prefix is ensured on every dial.
func NewDialer(cfg ClientConfig, prefix string, log *logger.Logger) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, err := Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if c.js != nil {
			if err := NewStreamManager(c, prefix).EnsureStream(ctx); err != nil {
				c.Close()
				return nil, err
			}
		}
		return c, nil
	}
}

// JetStream returns the JetStream context, or nil in core mode.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Publish sends data on subject. In JetStream mode it waits for the
// publish ack.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if c.js != nil {
		if _, err := c.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", subject, err)
		}
		return nil
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers messages on subject to handler, one at a time in
// arrival order.
func (c *Client) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
