// Package mqtt publishes entity state to an MQTT broker and accepts commands
// from it.
package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/config"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	keepAlive         = 60 * time.Second
	disconnectQuiesce = 1000 // milliseconds

	payloadOnline  = "online"
	payloadOffline = "offline"
)

var ErrConnectionFailed = errors.New("mqtt connection failed")

// Handler receives one message. It runs on the MQTT router and must not block.
type Handler func(topic string, payload []byte)

// Conn is the subset of a broker connection the bridge needs.
type Conn interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler Handler) error
	Close()
}

// Client is a paho-backed Conn. Subscriptions are restored after reconnects
// and the status topic carries a retained online/offline marker.
type Client struct {
	client      pahomqtt.Client
	qos         byte
	statusTopic string
	log         *logrus.Entry

	mu   sync.Mutex
	subs map[string]Handler
}

func Connect(cfg config.MQTTConfig, log *logrus.Entry) (*Client, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "omhome-" + uuid.NewString()[:8]
	}

	c := &Client{
		qos:         byte(cfg.QoS),
		statusTopic: StatusTopic(cfg.TopicPrefix),
		log:         log.WithField("broker", cfg.Broker),
		subs:        make(map[string]Handler),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	// Messages are handed to handlers in order on the router goroutine, so
	// handlers must return quickly.
	opts.SetOrderMatters(true)
	opts.SetWill(c.statusTopic, payloadOffline, c.qos, true)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.WithError(err).Warn("mqtt connection lost")
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func (c *Client) handleConnect() {
	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for topic, handler := range c.subs {
		subs[topic] = handler
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		c.client.Subscribe(topic, c.qos, wrap(handler))
	}
	c.client.Publish(c.statusTopic, c.qos, true, payloadOnline)
	c.log.Info("mqtt connected")
}

func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return token.Error()
}

func (c *Client) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(topic, c.qos, wrap(handler))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	return token.Error()
}

// Close marks the bridge offline and disconnects.
func (c *Client) Close() {
	if c.client.IsConnected() {
		token := c.client.Publish(c.statusTopic, c.qos, true, payloadOffline)
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
}

func wrap(handler Handler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}
