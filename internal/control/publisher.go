// Package control provides the fire-and-forget command channel to the
// rover. Commands are published to a single fixed MQTT topic; no reply or
// acknowledgment is ever awaited, and a failed publish is logged rather
// than surfaced to the HTTP caller.
package control

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rovercam/rovercam/pkg/logger"
)

// Well-known command messages understood by the rover firmware.
const (
	CommandRecord       = "RECORD"
	CommandStopRecord   = "STOP_RECORD"
	CommandTrack        = "TRACKING"
	CommandStopTrack    = "STOP_TRACKING"
	publishWaitDuration = time.Second * 2
)

var log = logger.Get("Control")

type (
	MqttConfig struct {
		Enabled bool   `yaml:"enabled" env:"MQTT_ENABLED" env-default:"true"`
		Broker  string `yaml:"broker" env:"MQTT_BROKER" env-default:"broker.emqx.io"`
		Port    int    `yaml:"port" env:"MQTT_PORT" env-default:"1883"`
		Topic   string `yaml:"topic" env:"MQTT_TOPIC" env-default:"au-itpdp-group3-2025"`
	}

	// Publisher is the capability the HTTP layer is handed; injecting it
	// keeps the control routes testable without a live broker.
	Publisher interface {
		Publish(ctx context.Context, message string) error
	}

	mqttPublisher struct {
		client mqtt.Client
		topic  string
	}

	noopPublisher struct{}
)

// NewPublisher constructs a Publisher from the provided config. When the
// control channel is disabled, a no-op publisher is returned so the HTTP
// surface behaves identically with or without a broker configured.
func NewPublisher(config MqttConfig) (Publisher, error) {
	if !config.Enabled {
		log.Emit(logger.WARNING, "MQTT control channel disabled, rover commands will be dropped\n")
		return &noopPublisher{}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", config.Broker, config.Port)).
		SetClientID(fmt.Sprintf("rovercam-%s", uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Emit(logger.SUCCESS, "Connected to MQTT broker %s:%d\n", config.Broker, config.Port)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Emit(logger.WARNING, "Lost connection to MQTT broker: %s\n", err.Error())
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(publishWaitDuration) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &mqttPublisher{client: client, topic: config.Topic}, nil
}

// Publish sends the message to the configured topic at QoS 0. The token is
// awaited only briefly so a flaky broker cannot stall request handling.
func (publisher *mqttPublisher) Publish(ctx context.Context, message string) error {
	token := publisher.client.Publish(publisher.topic, 0, false, message)
	if token.WaitTimeout(publishWaitDuration) && token.Error() != nil {
		return fmt.Errorf("failed to publish %q to topic %s: %w", message, publisher.topic, token.Error())
	}

	log.Emit(logger.INFO, "Sent %q to topic %s\n", message, publisher.topic)
	return nil
}

func (publisher *noopPublisher) Publish(_ context.Context, message string) error {
	log.Emit(logger.DEBUG, "Dropping rover command %q (control channel disabled)\n", message)
	return nil
}
