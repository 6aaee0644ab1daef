package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"sensornode-go/errcode"
)

// MQTTConfig describes the broker session.
type MQTTConfig struct {
	Broker         string // tcp://host:1883
	ClientID       string // default sensornode-<random>
	Username       string
	Password       string
	QoS            byte
	RootTopic      string // availability is published on <root>/status; see SetRootTopic
	ConnectTimeout time.Duration
}

// MQTT dials paho sessions. Reconnection is left to the bridge so that every
// attempt is logged and paced the same way.
type MQTT struct {
	cfg MQTTConfig

	mu   sync.Mutex
	root string
}

func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "sensornode-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &MQTT{cfg: cfg, root: cfg.RootTopic}
}

func (m *MQTT) String() string { return m.cfg.Broker }

// AvailabilityTopic carries "online", or the "offline" will.
func (m *MQTT) AvailabilityTopic() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root + "/status"
}

// SetRootTopic moves the availability topic and will. Sessions dialled
// afterwards use it.
func (m *MQTT) SetRootTopic(root string) {
	m.mu.Lock()
	m.root = root
	m.mu.Unlock()
}

// Options builds the paho options for one session; lost receives the cause
// when the connection drops.
func (m *MQTT) Options(lost chan<- error) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	opts.SetUsername(m.cfg.Username)
	opts.SetPassword(m.cfg.Password)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(m.cfg.ConnectTimeout)
	opts.SetWill(m.AvailabilityTopic(), "offline", m.cfg.QoS, true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})
	return opts
}

func (m *MQTT) Dial(ctx context.Context) (Link, error) {
	lost := make(chan error, 1)
	opts := m.Options(lost)
	c := mqtt.NewClient(opts)
	if err := wait(ctx, c.Connect(), m.cfg.ConnectTimeout); err != nil {
		return nil, err
	}
	l := &mqttLink{c: c, qos: m.cfg.QoS, lost: lost, timeout: m.cfg.ConnectTimeout, avail: opts.WillTopic}
	if err := wait(ctx, c.Publish(l.avail, m.cfg.QoS, true, "online"), l.timeout); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// client is the part of mqtt.Client a link uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

type mqttLink struct {
	c       client
	qos     byte
	lost    chan error
	timeout time.Duration
	avail   string // availability topic of this session
}

func (l *mqttLink) Publish(topic string, payload []byte) error {
	return wait(context.Background(), l.c.Publish(topic, l.qos, false, payload), l.timeout)
}

func (l *mqttLink) Lost() <-chan error { return l.lost }

// Close marks the session offline before disconnecting; a clean disconnect
// does not fire the will.
func (l *mqttLink) Close() {
	if l.avail != "" && l.c.IsConnected() {
		_ = wait(context.Background(), l.c.Publish(l.avail, l.qos, true, "offline"), time.Second)
	}
	l.c.Disconnect(250)
}

var errTimeout = errors.New("broker did not answer")

// wait blocks on a token, bounded by d and ctx.
func wait(ctx context.Context, tok mqtt.Token, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return errcode.Wrap(errcode.NotConnected, "mqtt", err)
		}
		return nil
	case <-t.C:
		return errcode.Wrap(errcode.Timeout, "mqtt", errTimeout)
	case <-ctx.Done():
		return errcode.Wrap(errcode.Timeout, "mqtt", ctx.Err())
	}
}
