package publisher

import (
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Publisher forwards readings to wherever they are consumed.
type Publisher interface {
	Publish(pubs []scheduler.Publication) error
}

// mqttClient is the part of MQTT.Client the publisher uses.
type mqttClient interface {
	IsConnectionOpen() bool
	Connect() MQTT.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
}

type MQTTPublisher struct {
	client      mqttClient
	clientID    string
	statusTopic string
	timeout     time.Duration
	retryDelay  time.Duration
	maxAttempts int
	log         logrus.FieldLogger
}
