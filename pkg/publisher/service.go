package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/config"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected = errors.New("mqtt broker not connected")
	ErrTimeout      = errors.New("mqtt operation timed out")
)

const (
	defaultTimeout     = 5 * time.Second
	defaultRetryDelay  = 5 * time.Second
	defaultMaxAttempts = 10
	disconnectQuiesce  = 250

	qos byte = 0
)

func NewMQTTPublisher(cfg config.MqttConfig, log logrus.FieldLogger) *MQTTPublisher {
	p := newPublisher(nil, cfg, log)

	options := MQTT.NewClientOptions().AddBroker(cfg.BrokerURL())
	options.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		options.SetUsername(cfg.Username)
		options.SetPassword(cfg.Password)
	}
	options.SetAutoReconnect(true)
	options.SetOnConnectHandler(func(c MQTT.Client) {
		p.announce(c)
	})
	options.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		p.log.WithError(err).Warn("mqtt connection lost")
	})

	p.client = MQTT.NewClient(options)
	return p
}

func newPublisher(client mqttClient, cfg config.MqttConfig, log logrus.FieldLogger) *MQTTPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MQTTPublisher{
		client:      client,
		clientID:    cfg.ClientID,
		statusTopic: cfg.StatusTopic,
		timeout:     defaultTimeout,
		retryDelay:  defaultRetryDelay,
		maxAttempts: defaultMaxAttempts,
		log:         log.WithField("component", "mqtt"),
	}
}

// AliveMessage is sent on the status topic after every (re)connect.
func AliveMessage(clientID string) string {
	return "p1 meter alive: " + clientID
}

// Connect tries to reach the broker until it succeeds, the attempts run out
// or ctx is cancelled.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if p.client.IsConnectionOpen() {
			return nil
		}

		err := p.wait(p.client.Connect())
		if err == nil {
			p.log.Info("connected to mqtt broker")
			return nil
		}
		lastErr = err
		p.log.WithError(err).Warnf("mqtt connect failed (%d/%d)", attempt, p.maxAttempts)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryDelay):
		}
	}
	return fmt.Errorf("failed to connect to mqtt broker after %d attempts: %w", p.maxAttempts, lastErr)
}

// Publish sends each publication as a non-retained message.
func (p *MQTTPublisher) Publish(pubs []scheduler.Publication) error {
	if len(pubs) == 0 {
		return nil
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	var errs []error
	for _, pub := range pubs {
		p.log.WithField("topic", pub.Topic).Debugf("publishing %s", pub.Payload)
		if err := p.wait(p.client.Publish(pub.Topic, qos, false, pub.Payload)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pub.Topic, err))
		}
	}
	return errors.Join(errs...)
}

func (p *MQTTPublisher) Disconnect() {
	if p.client.IsConnectionOpen() {
		p.client.Disconnect(disconnectQuiesce)
	}
}

// LogTopics lists every topic the publisher may write to.
func LogTopics(log logrus.FieldLogger, root string, names []string) {
	for _, name := range names {
		log.Debugf("topic: %s", scheduler.Topic(root, name))
	}
}

func (p *MQTTPublisher) announce(c mqttClient) {
	if p.statusTopic == "" {
		return
	}
	if err := p.wait(c.Publish(p.statusTopic, qos, false, AliveMessage(p.clientID))); err != nil {
		p.log.WithError(err).Warn("failed to publish alive message")
	}
}

func (p *MQTTPublisher) wait(token MQTT.Token) error {
	if !token.WaitTimeout(p.timeout) {
		return ErrTimeout
	}
	return token.Error()
}
