package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/timothy-holmes/ht-tracker/internal/config"
	"github.com/timothy-holmes/ht-tracker/internal/logging"
	"github.com/timothy-holmes/ht-tracker/internal/metrics"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/scheduler"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

const (
	readingQoS  = 0
	statusQoS   = 1
	publishWait = 5 * time.Second
	kindReading = "reading"
	kindStatus  = "status"
)

// Client fans committed readings out to an MQTT broker. Delivery is best
// effort: nothing is queued while disconnected.
type Client struct {
	client mqtt.Client
	prefix string
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// ReadingMessage is the payload published per reading.
type ReadingMessage struct {
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Epoch       float64   `json:"epoch"`
	Temperature float64   `json:"temperature"`
}

type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Enabled reports whether cfg names a broker.
func Enabled(cfg config.Config) bool {
	return strings.TrimSpace(cfg.MQTTBroker) != ""
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Client{
		prefix: cfg.MQTTTopicPrefix,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(clientID(cfg.MQTTClientID))

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// clientID appends a short random suffix so two processes sharing a
// configured id do not kick each other off the broker.
func clientID(base string) string {
	if base == "" {
		base = "ht-tracker"
	}
	return base + "-" + uuid.NewString()[:8]
}

// Connect waits for the first connection, honouring ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishReadings sends one message per reading. It stops at the first failure.
func (c *Client) PublishReadings(readings []types.Reading) error {
	msgs, err := ReadingMessages(c.prefix, readings)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := c.publish(m); err != nil {
			metrics.IncPublished(kindReading, metrics.ResultError)
			return err
		}
		metrics.IncPublished(kindReading, metrics.ResultSuccess)
	}
	c.logger.Debug("published readings", "count", len(msgs))
	return nil
}

// PublishStatus sends the scheduler status as a retained message.
func (c *Client) PublishStatus(status scheduler.Status) error {
	m, err := StatusMessage(c.prefix, status)
	if err != nil {
		return err
	}
	if err := c.publish(m); err != nil {
		metrics.IncPublished(kindStatus, metrics.ResultError)
		return err
	}
	metrics.IncPublished(kindStatus, metrics.ResultSuccess)
	return nil
}

func (c *Client) publish(m Message) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	token := c.client.Publish(m.Topic, m.QoS, m.Retained, m.Payload)
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("publish timeout for topic %s", m.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.Topic, err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect is idempotent. Connect fails once it has been called.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.client != nil {
		c.client.Disconnect(250)
	}
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// ReadingTopic is <prefix>/devices/<device>/temperature.
func ReadingTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/temperature", prefix, topicSegment(deviceID))
}

func StatusTopic(prefix string) string {
	return prefix + "/status"
}

// ReadingMessages builds the messages PublishReadings sends, in input order.
func ReadingMessages(prefix string, readings []types.Reading) ([]Message, error) {
	out := make([]Message, 0, len(readings))
	for _, r := range readings {
		payload, err := json.Marshal(ReadingMessage{
			DeviceID:    r.DeviceID,
			Timestamp:   r.Time(),
			Epoch:       r.Timestamp,
			Temperature: r.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal reading: %w", err)
		}
		out = append(out, Message{
			Topic:   ReadingTopic(prefix, r.DeviceID),
			QoS:     readingQoS,
			Payload: payload,
		})
	}
	return out, nil
}

func StatusMessage(prefix string, status scheduler.Status) (Message, error) {
	payload, err := json.Marshal(status)
	if err != nil {
		return Message{}, fmt.Errorf("marshal status: %w", err)
	}
	return Message{
		Topic:    StatusTopic(prefix),
		QoS:      statusQoS,
		Retained: true,
		Payload:  payload,
	}, nil
}

// topicSegment keeps a device id from adding levels or wildcards to a topic.
func topicSegment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
