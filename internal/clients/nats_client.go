package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/config"
	"bridge-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

// NATSClient publishes bridge events to JetStream for the off-band relayer
// and lets relayer processes subscribe to the counterpart's subjects.
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
	// subjectPrefix is "bridge.<chain>.endpoint".
	subjectPrefix string
}

// eventMessage is the wire form of a bridge event. Amount travels as a
// decimal string so relayers in any language can parse it.
type eventMessage struct {
	Type       string `json:"type"`
	User       string `json:"user"`
	Amount     string `json:"amount"`
	Nonce      uint64 `json:"nonce"`
	ChainID    uint64 `json:"chain_id"`
	TransferID string `json:"transfer_id"`
	EmittedAt  int64  `json:"emitted_at"`
}

// NewNATSClient connects to NATS and ensures the bridge event stream exists.
func NewNATSClient(url, streamName, subjectPrefix string) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if config.AppConfig != nil && config.AppConfig.NATS.Timeout > 0 {
		connectTimeout = time.Duration(config.AppConfig.NATS.Timeout) * time.Second
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:          conn,
		js:            js,
		streamName:    streamName,
		subjectPrefix: subjectPrefix,
	}

	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.NATSConnectionStatus.Set(1)
	return client, nil
}

func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.streamName)
	if err == nil {
		log.Printf("Stream %s already exists", c.streamName)
		return nil
	}

	streamConfig := &nats.StreamConfig{
		Name: c.streamName,
		Subjects: []string{
			c.subjectPrefix + ".*",
		},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}

	if _, err := c.js.AddStream(streamConfig); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}

	log.Printf("Stream %s created", c.streamName)
	return nil
}

// Publish implements bridge.Publisher. Events land on
// <prefix>.<EventType>, e.g. bridge.bsc.endpoint.Locked.
func (c *NATSClient) Publish(ctx context.Context, event bridge.Event) error {
	msg := eventMessage{
		Type:       string(event.Type),
		User:       event.User,
		Amount:     event.Amount.String(),
		Nonce:      event.Nonce,
		ChainID:    event.ChainID,
		TransferID: event.TransferID.Hex(),
		EmittedAt:  event.EmittedAt.Unix(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", c.subjectPrefix, event.Type)
	if _, err := c.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		metrics.EventsPublishFailedTotal.WithLabelValues(string(event.Type)).Inc()
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// SubscribeToEvents delivers every bridge event on the configured prefix to
// the handler. Used by relayer processes watching a counterpart endpoint.
func (c *NATSClient) SubscribeToEvents(durable string, handler func(eventType, user, amount string, nonce, chainID uint64, transferID string)) error {
	subject := c.subjectPrefix + ".*"
	_, err := c.js.Subscribe(subject, func(msg *nats.Msg) {
		var event eventMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("❌ [NATS] failed to parse bridge event on %s: %v", msg.Subject, err)
			return
		}
		handler(event.Type, event.User, event.Amount, event.Nonce, event.ChainID, event.TransferID)
		msg.Ack()
	}, nats.Durable(durable), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	log.Printf("✅ Subscribed to bridge events on %s", subject)
	return nil
}

// Close drains the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
	metrics.NATSConnectionStatus.Set(0)
}
