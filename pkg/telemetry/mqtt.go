package telemetry

import (
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/gotip/pkg/config"
)

// Topic suffixes below the configured prefix.
const (
	TopicTemperature = "temperature"
	TopicPower       = "power"
	TopicState       = "state"
	TopicAlert       = "alert"
)

// Station states published on the state topic.
const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// Publisher publishes telemetry to MQTT.
type Publisher interface {
	// Publish sends the record's temperature and power.
	Publish(r Record) error

	// PublishState sends a station lifecycle state.
	PublishState(state string) error

	// PublishAlert reports an over-current alert seen at the given time.
	PublishAlert(at time.Time) error

	// Close disconnects from the broker.
	Close() error
}

// Topic joins the prefix and a topic suffix.
func Topic(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// FormatTemperature formats a record's temperature in °C.
func FormatTemperature(r Record) []byte {
	return strconv.AppendFloat(nil, float64(r.Temperature)/100, 'f', 2, 64)
}

// FormatPower formats a record's power in W.
func FormatPower(r Record) []byte {
	return strconv.AppendFloat(nil, float64(r.Power)/100, 'f', 2, 64)
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client   paho.Client
	prefix   string
	qos      byte
	retained bool
	timeout  time.Duration
}

var _ Publisher = (*RealPublisher)(nil)

// NewRealPublisher creates a publisher connected to the configured broker.
// The broker marks the station offline if the connection drops.
func NewRealPublisher(cfg *config.MQTTConfig) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(Topic(cfg.Prefix, TopicState), StateOffline, 1, true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{
		client:   client,
		prefix:   cfg.Prefix,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		timeout:  cfg.Timeout,
	}, nil
}

// Publish sends a record's temperature and power.
func (p *RealPublisher) Publish(r Record) error {
	if err := p.publish(TopicTemperature, p.qos, p.retained, FormatTemperature(r)); err != nil {
		return err
	}
	return p.publish(TopicPower, p.qos, p.retained, FormatPower(r))
}

// PublishState sends a lifecycle state. States are always retained with
// QoS 1 so late subscribers see whether the station is up.
func (p *RealPublisher) PublishState(state string) error {
	return p.publish(TopicState, 1, true, []byte(state))
}

// PublishAlert sends the alert time in RFC 3339 with QoS 1.
func (p *RealPublisher) PublishAlert(at time.Time) error {
	return p.publish(TopicAlert, 1, false, []byte(at.Format(time.RFC3339Nano)))
}

func (p *RealPublisher) publish(suffix string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(Topic(p.prefix, suffix), qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s timeout", suffix)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", suffix, err)
	}
	return nil
}

// IsConnected reports whether the client is connected to the broker.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
