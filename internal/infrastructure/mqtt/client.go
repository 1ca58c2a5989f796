package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/modemsim/internal/infrastructure/config"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// reconnect backoff bounds
	minReconnectInterval = time.Second
	maxReconnectInterval = 60 * time.Second

	maxQoS = 2
)

// statusPayload is the retained system status message.
type statusPayload struct {
	Online     bool   `json:"online"`
	Generation uint64 `json:"generation,omitempty"`
	PeerPath   string `json:"peer_path,omitempty"`
}

// Client wraps paho.mqtt.golang for publish-only use.
//
// All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger *logging.Logger

	connected bool
	connMu    sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// It configures a Last Will and Testament so subscribers see
// {"online": false} on the status topic if the simulator dies, enables
// auto-reconnect with exponential backoff, and publishes an online
// status once connected.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - logger: Destination for connection state changes
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the initial connection fails within the timeout
func Connect(cfg config.MQTTConfig, logger *logging.Logger) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		logger: logger,
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.Broker.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.SetConnectRetryInterval(minReconnectInterval)
	opts.SetCleanSession(true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// LWT: broker marks us offline if the process dies unannounced.
	will, err := json.Marshal(statusPayload{Online: false})
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling will: %w", ErrConnectionFailed, err)
	}
	opts.SetBinaryWill(Topics{}.SystemStatus(), will, byte(cfg.QoS), true)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connected", "broker", brokerURL(cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.setConnected(true)

	return c, nil
}

// brokerURL builds the broker URL from config.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// PublishStatus publishes the retained online status.
//
// Parameters:
//   - generation: Current device generation
//   - peerPath: Current client-facing device path
func (c *Client) PublishStatus(generation uint64, peerPath string) error {
	payload, err := json.Marshal(statusPayload{
		Online:     true,
		Generation: generation,
		PeerPath:   peerPath,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return c.Publish(Topics{}.SystemStatus(), payload, byte(c.cfg.QoS), true)
}

// Publish sends a message to the specified topic.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload (JSON by convention)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: nil on success, or a wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		qos = maxQoS
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Close publishes an offline status and disconnects gracefully.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		// Best-effort goodbye; the LWT covers the unclean case.
		payload, err := json.Marshal(statusPayload{Online: false})
		if err == nil {
			_ = c.Publish(Topics{}.SystemStatus(), payload, byte(c.cfg.QoS), true)
		}
	}

	c.client.Disconnect(uint(defaultPublishTimeout.Milliseconds()))
	c.setConnected(false)
	return nil
}
