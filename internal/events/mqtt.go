package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kozaktomas/face-attendance/internal/config"
)

const (
	connectTimeout       = 30 * time.Second
	connectRetryInterval = 10 * time.Second
	publishTimeout       = 10 * time.Second
)

var errConnectTimeout = errors.New("connect timeout")

// Client is the broker connection used by the publisher.
type Client interface {
	// Connect attempts to connect to the broker.
	Connect(ctx context.Context) error
	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// IsConnected returns true if the client is currently connected to the broker.
	IsConnected() bool
	// Disconnect closes the connection to the broker.
	Disconnect()
}

// StatusRecorder receives connection state changes.
type StatusRecorder interface {
	UpdateConnectionStatus(connected bool)
}

// mqttClient implements Client on paho. Paho keeps retrying the initial connection and
// reconnects after a lost connection.
type mqttClient struct {
	cfg         config.MQTTConfig
	client      mqtt.Client
	status      StatusRecorder
	logger      *slog.Logger
	connectWait time.Duration
}

// NewMQTTClient creates an MQTT client for cfg. status may be nil.
func NewMQTTClient(cfg config.MQTTConfig, status StatusRecorder, logger *slog.Logger) Client {
	return newMQTTClient(cfg, status, logger, connectTimeout, connectRetryInterval)
}

func newMQTTClient(cfg config.MQTTConfig, status StatusRecorder, logger *slog.Logger,
	connectWait, retryInterval time.Duration) *mqttClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &mqttClient{cfg: cfg, status: status, logger: logger, connectWait: connectWait}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(retryInterval)
	opts.SetMaxReconnectInterval(5 * time.Minute)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	c.client = mqtt.NewClient(opts)
	return c
}

// Connect waits at most connectWait for the first connection. On timeout paho keeps
// retrying in the background and the OnConnect handler reports the eventual success.
func (c *mqttClient) Connect(ctx context.Context) error {
	token := c.client.Connect()
	timer := time.NewTimer(c.connectWait)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("connecting to MQTT broker: %w", ctx.Err())
	case <-timer.C:
		return fmt.Errorf("connecting to MQTT broker %s: %w", c.cfg.Broker, errConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}

func (c *mqttClient) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.IsConnected() {
		return errors.New("not connected to MQTT broker")
	}

	token := c.client.Publish(topic, 1, false, payload)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("publish timeout")
	}
	return token.Error()
}

func (c *mqttClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect also stops a connection retry loop that is still running.
func (c *mqttClient) Disconnect() {
	c.client.Disconnect(250)
	c.setStatus(false)
}

func (c *mqttClient) onConnect(mqtt.Client) {
	c.logger.Info("connected to MQTT broker", "broker", c.cfg.Broker)
	c.setStatus(true)
}

func (c *mqttClient) onConnectionLost(_ mqtt.Client, err error) {
	c.logger.Warn("connection to MQTT broker lost", "broker", c.cfg.Broker, "error", err)
	c.setStatus(false)
}

func (c *mqttClient) setStatus(connected bool) {
	if c.status != nil {
		c.status.UpdateConnectionStatus(connected)
	}
}
